package httpapi

import (
	"html/template"
	"mime"
	"net/http"

	"go.uber.org/zap"
)

// magicConfirmPage is served for GET so that link scanners and prefetchers
// never consume the challenge. Only the form POST logs in.
var magicConfirmPage = template.Must(template.New("magic").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="robots" content="noindex">
<title>Confirm sign-in</title>
</head>
<body>
<form method="post" action="{{.Action}}">
<input type="hidden" name="email" value="{{.Email}}">
<input type="hidden" name="token" value="{{.Token}}">
<p>Sign in as {{.Email}}?</p>
<button type="submit">Sign in</button>
</form>
</body>
</html>
`))

type magicConfirmView struct {
	Action string
	Email  string
	Token  string
}

func (h *Handler) confirmMagicLink(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view := magicConfirmView{
		Action: r.URL.Path,
		Email:  q.Get("email"),
		Token:  q.Get("token"),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.WriteHeader(http.StatusOK)
	if err := magicConfirmPage.Execute(w, view); err != nil {
		h.logger.Warn("render magic link confirmation", zap.Error(err))
	}
}

func isFormPost(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/x-www-form-urlencoded"
}

// decodeMagicLink reads the credentials from the confirmation form or a
// JSON body. Query parameters are ignored.
func decodeMagicLink(w http.ResponseWriter, r *http.Request) (magicLinkRequest, error) {
	var req magicLinkRequest
	if !isFormPost(r) {
		return req, decodeBody(r, &req)
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.Email = r.PostForm.Get("email")
	req.Token = r.PostForm.Get("token")
	return req, nil
}
