package handler

// errorResponse is the standard error envelope returned on JSON 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

// startResponse never carries the token: qrUrl is redacted unless the
// service runs with EXPOSE_QR_URL.
type startResponse struct {
	ID          string `json:"id"`
	QRPngBase64 string `json:"qrPngBase64"`
	QRFile      string `json:"qrFile"`
	QRURL       string `json:"qrUrl"`
}

type setEmailRequest struct {
	ID    string `json:"id"    validate:"required"`
	Email string `json:"email" validate:"required"`
}

type setPseudoRequest struct {
	ID     string `json:"id"     validate:"required"`
	Pseudo string `json:"pseudo" validate:"required"`
}

type profileUserResponse struct {
	ID     string  `json:"id"`
	Pseudo *string `json:"pseudo"`
	Email  *string `json:"email"`
	QRFile string  `json:"qrFile,omitempty"`
}

type profileResponse struct {
	User profileUserResponse `json:"user"`
}
