package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qr-attendance-api/internal/dto"
	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
	"github.com/noah-isme/qr-attendance-api/pkg/response"
)

type qrIssuer interface {
	Issue(ctx context.Context, claims *models.JWTClaims) (*dto.QRIssueResponse, error)
}

type qrRedeemer interface {
	Redeem(ctx context.Context, claims *models.JWTClaims, req dto.QRScanRequest) (*dto.QRScanResponse, error)
}

// QRHandler exposes QR issuance and redemption.
type QRHandler struct {
	issuer   qrIssuer
	redeemer qrRedeemer
}

// NewQRHandler constructs the handler.
func NewQRHandler(issuer qrIssuer, redeemer qrRedeemer) *QRHandler {
	return &QRHandler{issuer: issuer, redeemer: redeemer}
}

// Generate godoc
// @Summary Issue attendance QR code
// @Description Teacher issues a short-lived QR code bound to today
// @Tags QR
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.QRIssueResponse
// @Failure 401 {object} response.ErrorBody
// @Router /qr/generate [post]
func (h *QRHandler) Generate(c *gin.Context) {
	res, err := h.issuer.Issue(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}

// Scan godoc
// @Summary Redeem attendance QR code
// @Description Student marks today's attendance with a scanned QR code
// @Tags QR
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.QRScanRequest true "Scanned QR data"
// @Success 200 {object} dto.QRScanResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 401 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /qr/scan [post]
func (h *QRHandler) Scan(c *gin.Context) {
	var req dto.QRScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "No QR data provided"))
		return
	}
	res, err := h.redeemer.Redeem(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}
