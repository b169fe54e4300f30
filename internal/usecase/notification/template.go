package notification

import "text/template"

const _subjectTemplate = `Order {{.OrderNumber}} confirmed`

const _bodyTemplate = `Thank you for your order {{.OrderNumber}} placed on {{.OrderDate.Format "2006-01-02 15:04"}}.

{{range .LineItems}}{{.ProductName}}  {{.Quantity}} x {{.UnitPrice.StringFixed 2}} = {{.LineTotal.StringFixed 2}}
{{end}}
Total: {{.TotalAmount.StringFixed 2}}
`

var (
	subjectTmpl = template.Must(template.New("subject").Parse(_subjectTemplate))
	bodyTmpl    = template.Must(template.New("body").Parse(_bodyTemplate))
)
