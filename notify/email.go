package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/evdnx/gotrade/config"
	"github.com/evdnx/gotrade/indicator"
	"github.com/evdnx/gotrade/sizing"
)

var orderTemplate = template.Must(template.New("order").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>Order sent</title>
<style>
body { font-family: Arial, sans-serif; background-color: #f4f4f4; margin: 0; padding: 20px; }
.email-container { background-color: #ffffff; padding: 20px; border-radius: 8px; }
table { width: 100%; margin-top: 20px; border-collapse: collapse; }
table, th, td { border: 1px solid #ddd; }
th, td { padding: 12px; text-align: left; }
th { background-color: #f4f4f4; color: #333; }
</style>
</head>
<body>
<div class="email-container">
<h2>{{.Side}} {{.Type}} order sent for {{.Symbol}}</h2>
<table>
<tr><th>Reason</th><td>{{.Reason}}</td></tr>
<tr><th>Order ID</th><td>{{.OrderID}}</td></tr>
<tr><th>Status</th><td>{{.Status}}</td></tr>
<tr><th>Time</th><td>{{.Time}}</td></tr>
<tr><th>Price</th><td>{{.Price}}</td></tr>
<tr><th>Quantity</th><td>{{.Quantity}}</td></tr>
<tr><th>Executed</th><td>{{.Executed}}</td></tr>
</table>
<br>
{{if .HasIndicators}}<h2>Indicators</h2>
<table>
<tr><th>Fast MA</th><td>{{.MAFast}} ({{.MAFastDirection}})</td></tr>
<tr><th>Slow MA</th><td>{{.MASlow}} ({{.MASlowDirection}})</td></tr>
<tr><th>RSI</th><td>{{.RSI}} ({{.RSICondition}})</td></tr>
</table>
<br>
{{end}}<h2>Last executed orders</h2>
<table>
<tr><th>Last BUY price</th><td>{{.LastBuy}}</td></tr>
<tr><th>Last SELL price</th><td>{{.LastSell}}</td></tr>
</table>
</div>
</body>
</html>`))

type orderView struct {
	Symbol, Side, Type, Reason, Status, Time string
	OrderID                                  int64
	Price, Quantity, Executed                string
	HasIndicators                            bool
	MAFast, MASlow, RSI                      string
	MAFastDirection, MASlowDirection         string
	RSICondition                             string
	LastBuy, LastSell                        string
}

// Direction names the sign of a gradient.
func Direction(gradient float64) string {
	switch {
	case gradient > 0:
		return "rising"
	case gradient < 0:
		return "falling"
	default:
		return "flat"
	}
}

// RSICondition classifies an RSI reading.
func RSICondition(rsi float64) string {
	switch {
	case rsi > 70:
		return "overbought"
	case rsi < 30:
		return "oversold"
	default:
		return "normal"
	}
}

// RenderOrder builds the HTML body for r.
func RenderOrder(r Report) (string, error) {
	tick, step := r.Filters.TickSize, r.Filters.StepSize
	v := orderView{
		Symbol:   r.Symbol,
		Side:     string(r.Ack.Side),
		Type:     string(r.Ack.Type),
		Reason:   r.Reason,
		Status:   string(r.Ack.Status),
		Time:     r.Ack.TransactTime.UTC().Format("2006-01-02 15:04:05"),
		OrderID:  r.Ack.OrderID,
		Price:    sizing.FormatIncrement(r.Spec.Price, tick),
		Quantity: sizing.FormatIncrement(r.Spec.Quantity, step),
		Executed: sizing.FormatIncrement(r.Ack.ExecutedQty, step),
		LastBuy:  sizing.FormatIncrement(r.Position.LastBuyPrice, tick),
		LastSell: sizing.FormatIncrement(r.Position.LastSellPrice, tick),
	}
	if b := r.Bundle; b != nil {
		v.HasIndicators = true
		v.MAFast = sizing.FormatIncrement(indicator.Last(b.MAFast), tick)
		v.MASlow = sizing.FormatIncrement(indicator.Last(b.MASlow), tick)
		v.MAFastDirection = Direction(b.MAFastGradient)
		v.MASlowDirection = Direction(b.MASlowGradient)
		v.RSI = strconv.FormatFloat(b.LastRSI(), 'f', 2, 64)
		v.RSICondition = RSICondition(b.LastRSI())
	}
	var buf bytes.Buffer
	if err := orderTemplate.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render order email: %w", err)
	}
	return buf.String(), nil
}

// SMTPNotifier e-mails an HTML order summary to every receiver.
type SMTPNotifier struct {
	cfg      config.MailConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPNotifier(cfg config.MailConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, sendMail: smtp.SendMail}
}

func (n *SMTPNotifier) Notify(_ context.Context, r Report) error {
	body, err := RenderOrder(r)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Trading bot - %s %s %s", r.Symbol, r.Ack.Side, r.Ack.Type)
	msg := []byte(
		"From: " + n.cfg.From + "\r\n" +
			"To: " + strings.Join(n.cfg.Receivers, ", ") + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n" +
			"\r\n" +
			body + "\r\n",
	)
	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}
	addr := n.cfg.Host + ":" + strconv.Itoa(n.cfg.Port)
	if err := n.sendMail(addr, auth, n.cfg.From, n.cfg.Receivers, msg); err != nil {
		return fmt.Errorf("SMTP error: %w", err)
	}
	return nil
}
