package httpapi

import (
	"html/template"
	"net/http"

	"sessionguard/internal/auth"
	"sessionguard/internal/guard"

	"github.com/gin-gonic/gin"
)

var pageTmpl = template.Must(template.New("page").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
{{if .UserID}}<p>Signed in as {{.Email}} ({{.Role}})</p>{{end}}
{{if .Form}}<form method="post" action="/api/auth/login">
<input type="hidden" name="redirect" value="{{.Redirect}}">
<input name="email" type="email" autocomplete="username">
<input name="password" type="password" autocomplete="current-password">
<button type="submit">Sign in</button>
</form>{{end}}
</body></html>`))

type pageData struct {
	Title    string
	Error    string
	UserID   string
	Email    string
	Role     string
	Form     bool
	Redirect string
}

func renderPage(c *gin.Context, status int, d pageData) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	if err := pageTmpl.Execute(c.Writer, d); err != nil {
		_ = c.Error(err)
	}
}

var pageErrors = map[string]string{
	"session_expired":     "Your session has expired. Please sign in again.",
	"unauthorized":        "You do not have access to that page.",
	"invalid_credentials": "Invalid email or password.",
	"missing_credentials": "Email and password are required.",
}

// Me serves GET /api/me from the identity the guard placed on the request.
func (h Handlers) Me(c *gin.Context) {
	id, ok := auth.IdentityFrom(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid bearer token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": id.UserID, "email": id.Email, "role": id.Role, "sessionId": id.SessionID})
}

func (h Handlers) Home(c *gin.Context) {
	d := pageData{Title: "Home"}
	if id, ok := auth.IdentityFrom(c.Request.Context()); ok {
		d.UserID, d.Email, d.Role = id.UserID, id.Email, id.Role
	}
	renderPage(c, http.StatusOK, d)
}

func (h Handlers) LoginPage(c *gin.Context) {
	renderPage(c, http.StatusOK, pageData{
		Title:    "Sign in",
		Error:    pageErrors[c.Query("error")],
		Form:     true,
		Redirect: c.Query("redirect"),
	})
}

// Dashboard trusts the X-User-Id the guard set; the rest comes from the request identity.
func (h Handlers) Dashboard(c *gin.Context) {
	id, _ := auth.IdentityFrom(c.Request.Context())
	renderPage(c, http.StatusOK, pageData{
		Title:  "Dashboard",
		Error:  pageErrors[c.Query("error")],
		UserID: c.Writer.Header().Get(guard.HeaderUserID),
		Email:  id.Email,
		Role:   id.Role,
	})
}

func (h Handlers) Admin(c *gin.Context) {
	id, _ := auth.IdentityFrom(c.Request.Context())
	renderPage(c, http.StatusOK, pageData{Title: "Admin", UserID: id.UserID, Email: id.Email, Role: id.Role})
}
