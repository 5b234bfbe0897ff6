package handler

import (
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/anonqr/identity-service/internal/api/metrics"
	"github.com/anonqr/identity-service/internal/core/domain"
	"github.com/anonqr/identity-service/internal/core/ports"
)

const redactedToken = "redacted"

// Options tunes how the handler builds client-visible URLs.
type Options struct {
	// BaseURL overrides the per-request origin when non-empty.
	BaseURL string
	// ExposeQRURL returns the verification URL with its token from /start.
	ExposeQRURL bool
}

// UserHandler serves the identity, profile and QR endpoints.
type UserHandler struct {
	service ports.UserService
	opts    Options
}

func NewUserHandler(service ports.UserService, opts Options) *UserHandler {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &UserHandler{service: service, opts: opts}
}

// Start issues a new anonymous identity and its QR code.
//
// @Summary      Issue an anonymous identity
// @Tags         identity
// @Produce      json
// @Success      200  {object}  startResponse
// @Failure      500  {object}  errorResponse
// @Router       /start [post]
// @Router       /api/start [post]
func (h *UserHandler) Start(c echo.Context) error {
	res, err := h.service.Register(c.Request().Context(), ports.RegisterInput{BaseURL: h.baseURL(c)})
	if err != nil {
		return err
	}
	metrics.RegistrationsTotal.Inc()

	qrURL := res.QRURL
	if !h.opts.ExposeQRURL {
		qrURL = redactToken(qrURL)
	}

	return c.JSON(http.StatusOK, startResponse{
		ID:          res.ID,
		QRPngBase64: "data:image/png;base64," + base64.StdEncoding.EncodeToString(res.QRPNG),
		QRFile:      res.QRFile,
		QRURL:       qrURL,
	})
}

// SetEmail attaches an email to an identity.
//
// @Summary      Set email
// @Tags         profile
// @Accept       json
// @Produce      json
// @Param        body  body      setEmailRequest  true  "Identity and email"
// @Success      200   {object}  okResponse
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /email [put]
func (h *UserHandler) SetEmail(c echo.Context) error {
	var req setEmailRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.service.SetEmail(c.Request().Context(), req.ID, req.Email); err != nil {
		return err
	}
	metrics.ProfileUpdatesTotal.WithLabelValues(string(domain.FieldEmail)).Inc()
	return c.JSON(http.StatusOK, okResponse{OK: true})
}

// SetPseudo attaches a display name to an identity.
//
// @Summary      Set pseudo
// @Tags         profile
// @Accept       json
// @Produce      json
// @Param        body  body      setPseudoRequest  true  "Identity and pseudo"
// @Success      200   {object}  okResponse
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /pseudo [put]
func (h *UserHandler) SetPseudo(c echo.Context) error {
	var req setPseudoRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.service.SetPseudo(c.Request().Context(), req.ID, req.Pseudo); err != nil {
		return err
	}
	metrics.ProfileUpdatesTotal.WithLabelValues(string(domain.FieldPseudo)).Inc()
	return c.JSON(http.StatusOK, okResponse{OK: true})
}

// Redirect verifies a scanned QR code and sends the browser to the profile page.
//
// @Summary      Verify QR token
// @Tags         identity
// @Produce      plain
// @Param        id     path   string  true  "Private id"
// @Param        token  query  string  true  "Token embedded in the QR code"
// @Success      302
// @Failure      401  {string}  string
// @Failure      404  {string}  string
// @Router       /r/{id} [get]
func (h *UserHandler) Redirect(c echo.Context) error {
	target, err := h.service.Verify(c.Request().Context(), c.Param("id"), c.QueryParam("token"), h.baseURL(c))
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		metrics.VerificationsTotal.WithLabelValues("unknown").Inc()
		return c.String(http.StatusNotFound, "QR unknown.")
	case errors.Is(err, domain.ErrInvalidToken):
		metrics.VerificationsTotal.WithLabelValues("rejected").Inc()
		return c.String(http.StatusUnauthorized, "Invalid token.")
	case err != nil:
		return err
	}

	metrics.VerificationsTotal.WithLabelValues("ok").Inc()
	return c.Redirect(http.StatusFound, target.Location)
}

// Profile returns the public profile of an identity.
//
// @Summary      Get profile
// @Tags         profile
// @Produce      json
// @Param        id   path      string  true  "Private id"
// @Success      200  {object}  profileResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/profile/{id} [get]
func (h *UserHandler) Profile(c echo.Context) error {
	p, err := h.service.GetProfile(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profileResponse{User: profileUserResponse{
		ID:     p.ID,
		Pseudo: p.Pseudo,
		Email:  p.Email,
		QRFile: p.QRFile,
	}})
}

// QRImage serves the PNG generated at registration.
//
// @Summary      Get QR image
// @Tags         identity
// @Produce      png
// @Param        id   path  string  true  "Private id"
// @Success      200  {file}  binary
// @Failure      404  {string}  string
// @Router       /qr/{id}.png [get]
func (h *UserHandler) QRImage(c echo.Context) error {
	id, ok := strings.CutSuffix(c.Param("file"), ".png")
	if !ok || id == "" {
		return c.String(http.StatusNotFound, "QR not found.")
	}

	png, err := h.service.QRImage(c.Request().Context(), id)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		return c.String(http.StatusNotFound, "QR not found.")
	case errors.Is(err, domain.ErrArtifactNotFound):
		return c.String(http.StatusNotFound, "QR missing.")
	case err != nil:
		return err
	}
	return c.Blob(http.StatusOK, "image/png", png)
}

// baseURL is the configured origin, or the request's scheme and host.
func (h *UserHandler) baseURL(c echo.Context) string {
	if h.opts.BaseURL != "" {
		return h.opts.BaseURL
	}
	return c.Scheme() + "://" + c.Request().Host
}

func redactToken(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	q := u.Query()
	if q.Has("token") {
		q.Set("token", redactedToken)
		u.RawQuery = q.Encode()
	}
	return u.String()
}
