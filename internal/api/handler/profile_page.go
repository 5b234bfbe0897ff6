package handler

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonqr/identity-service/internal/core/domain"
	"github.com/anonqr/identity-service/internal/core/service"
)

const (
	fallbackTitle = "My account"
	fallbackEmail = "(not provided)"
)

// The id only appears inside the image URL, never as visible text.
var profileTemplate = template.Must(template.New("profile").Parse(`<!doctype html>
<meta charset="utf-8">
<title>Profile</title>
<style>
  body{font-family:system-ui,Segoe UI,Roboto,Arial,sans-serif;margin:24px}
  .muted{color:#666}
  .card{border:1px solid #e6e6e6;border-radius:12px;padding:16px;max-width:720px}
</style>
<div class="card">
  <h1 style="margin:0 0 8px 0;">{{.Title}}</h1>
  <div class="muted">Email : {{.Email}}</div>
  <p style="margin-top:12px">Welcome to your profile.</p>
  <img alt="QR" src="{{.QRImageURL}}" style="width:220px;border:1px solid #e6e6e6;border-radius:8px" />
</div>
`))

type profilePage struct {
	Title      string
	Email      string
	QRImageURL string
}

// ProfilePage renders the HTML profile. It does not check the token.
//
// @Summary      Profile page
// @Tags         profile
// @Produce      html
// @Param        id   path  string  true  "Private id"
// @Success      200  {string}  string
// @Failure      404  {string}  string
// @Router       /app/profile/{id} [get]
func (h *UserHandler) ProfilePage(c echo.Context) error {
	id := c.Param("id")
	p, err := h.service.GetProfile(c.Request().Context(), id)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		return c.String(http.StatusNotFound, "User not found.")
	case err != nil:
		return err
	}

	page := profilePage{
		Title:      fallbackTitle,
		Email:      fallbackEmail,
		QRImageURL: service.QRImageURL(h.baseURL(c), p.ID),
	}
	if p.Pseudo != nil && *p.Pseudo != "" {
		page.Title = *p.Pseudo
	}
	if p.Email != nil && *p.Email != "" {
		page.Email = *p.Email
	}

	var buf bytes.Buffer
	if err := profileTemplate.Execute(&buf, page); err != nil {
		return err
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}
