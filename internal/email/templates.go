package email

import (
	"bytes"
	"fmt"
	"html/template"
)

// message fills the shared layout. Link and Code are both optional.
type message struct {
	Title    string
	Greeting string
	Intro    string
	Action   string
	Link     string
	Code     string
	Outro    string
	Expiry   string
}

var layout = template.Must(template.New("layout").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body {
            font-family: Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
        }
        .header {
            background-color: #B45309;
            color: white;
            padding: 20px;
            text-align: center;
            border-radius: 5px 5px 0 0;
        }
        .content {
            background-color: #f9f9f9;
            padding: 30px;
            border-radius: 0 0 5px 5px;
        }
        .button {
            display: inline-block;
            background-color: #B45309;
            color: white !important;
            padding: 12px 30px;
            text-decoration: none;
            border-radius: 5px;
            margin: 20px 0;
        }
        .code {
            font-size: 32px;
            letter-spacing: 8px;
            font-weight: bold;
            text-align: center;
            margin: 20px 0;
        }
        .footer {
            margin-top: 30px;
            font-size: 12px;
            color: #666;
            text-align: center;
        }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.Title}}</h1>
    </div>
    <div class="content">
        <p>{{.Greeting}}</p>
        <p>{{.Intro}}</p>
        {{if .Code}}
        <p class="code">{{.Code}}</p>
        {{end}}
        {{if .Link}}
        <a href="{{.Link}}" class="button" style="color: white !important;">{{.Action}}</a>

        <p>Or copy and paste this link into your browser:</p>
        <p style="word-break: break-all; color: #B45309;">{{.Link}}</p>
        {{end}}
        <p style="margin-top: 30px;">{{.Outro}}</p>
    </div>
    <div class="footer">
        <p>This {{if .Code}}code{{else}}link{{end}} will expire in {{.Expiry}}.</p>
        <p>&copy; 2026 FMEA Tracker. All rights reserved.</p>
    </div>
</body>
</html>
`))

func render(msg message) (string, error) {
	var buf bytes.Buffer
	if err := layout.Execute(&buf, msg); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}
