package mailer

import (
	"bytes"
	"html/template"
)

// OverdueNoticeData fills the overdue notice template
type OverdueNoticeData struct {
	Name        string
	ItemTitle   string
	DueDate     string
	DaysOverdue int
	Fine        string
}

// ReceiptData fills the payment receipt template
type ReceiptData struct {
	Name          string
	PenaltyID     int64
	Amount        string
	PaymentMethod string
	PaidAt        string
}

var accountApprovedTmpl = template.Must(template.New("accountApproved").Parse(`
<html><body>
<p>Hi {{.Name}},</p>
<p>Your Lib-Track library account has been approved. You can now borrow books
and research papers from the university library.</p>
<p>— University Library</p>
</body></html>`))

var accountRejectedTmpl = template.Must(template.New("accountRejected").Parse(`
<html><body>
<p>Hi {{.Name}},</p>
<p>We were unable to approve your Lib-Track registration. Please visit the
library front desk with your school ID to complete verification.</p>
<p>— University Library</p>
</body></html>`))

var overdueNoticeTmpl = template.Must(template.New("overdueNotice").Parse(`
<html><body>
<p>Hi {{.Name}},</p>
<p>The item <strong>{{.ItemTitle}}</strong> was due on {{.DueDate}} and is now
{{.DaysOverdue}} day(s) overdue. Your running fine is <strong>₱{{.Fine}}</strong>
(capped at ₱200 per item).</p>
<p>Please return the item to stop the fine from growing.</p>
<p>— University Library</p>
</body></html>`))

var paymentReceiptTmpl = template.Must(template.New("paymentReceipt").Parse(`
<html><body>
<p>Hi {{.Name}},</p>
<p>We received your payment of <strong>₱{{.Amount}}</strong> for penalty
#{{.PenaltyID}} via {{.PaymentMethod}} on {{.PaidAt}}.</p>
<p>— University Library</p>
</body></html>`))

func render(tmpl *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderAccountApproved(name string) (string, error) {
	return render(accountApprovedTmpl, struct{ Name string }{name})
}

func renderAccountRejected(name string) (string, error) {
	return render(accountRejectedTmpl, struct{ Name string }{name})
}

func renderOverdueNotice(data OverdueNoticeData) (string, error) {
	return render(overdueNoticeTmpl, data)
}

func renderPaymentReceipt(data ReceiptData) (string, error) {
	return render(paymentReceiptTmpl, data)
}
