package api

import (
	"context"
	"errors"
	"io"
	"maps"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrz1836/krypt/internal/coordinator"
	"github.com/mrz1836/krypt/internal/output"
	krypterr "github.com/mrz1836/krypt/pkg/errors"
)

type handler struct {
	coord  Coordinator
	logger *zap.Logger
}

type transactionsResponse struct {
	Count        int                          `json:"count"`
	Transactions []coordinator.TransferRecord `json:"transactions"`
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// stateResponse adds the ledger existence check to the snapshot. It is
// omitted when the check fails.
type stateResponse struct {
	coordinator.Snapshot

	HasTransactions *bool `json:"hasTransactions,omitempty"`
}

func (h *handler) state(c *gin.Context) {
	resp := stateResponse{Snapshot: h.coord.Snapshot()}
	if has, err := h.coord.HasTransactions(c.Request.Context()); err != nil {
		h.logger.Warn("transfer existence check failed", zap.Error(err))
	} else {
		resp.HasTransactions = &has
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) connect(c *gin.Context) {
	account, err := h.coord.Connect(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account})
}

func (h *handler) getForm(c *gin.Context) {
	c.JSON(http.StatusOK, h.coord.Form())
}

// patchForm applies each field of a JSON object in key order.
func (h *handler) patchForm(c *gin.Context) {
	var fields map[string]string
	if err := c.ShouldBindJSON(&fields); err != nil {
		h.fail(c, krypterr.Translate(krypterr.ErrInvalidInput, err))
		return
	}

	for _, name := range slices.Sorted(maps.Keys(fields)) {
		if err := h.coord.UpdateField(name, fields[name]); err != nil {
			h.fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, h.coord.Form())
}

func (h *handler) resetForm(c *gin.Context) {
	h.coord.ResetForm()
	c.JSON(http.StatusOK, h.coord.Form())
}

// submit runs a submission from the request body, or from the current form
// when the body is empty. The submission is not cancelled if the client goes
// away.
func (h *handler) submit(c *gin.Context) {
	var req *coordinator.TransferRequest
	if c.Request.ContentLength != 0 {
		var body coordinator.TransferRequest
		switch err := c.ShouldBindJSON(&body); {
		case errors.Is(err, io.EOF):
		case err != nil:
			h.fail(c, krypterr.Translate(krypterr.ErrInvalidInput, err))
			return
		default:
			req = &body
		}
	}

	result, err := h.coord.SubmitRequest(context.WithoutCancel(c.Request.Context()), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) transactions(c *gin.Context) {
	list := h.coord.Transactions()
	c.JSON(http.StatusOK, transactionsResponse{Count: len(list), Transactions: list})
}

func (h *handler) refresh(c *gin.Context) {
	if err := h.coord.RefreshHistory(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	h.transactions(c)
}

func (h *handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, output.ErrorOutput{Error: output.Describe(err)})
}

// statusFor maps an error kind to an HTTP status. The partial failure is
// checked first since its cause chain may carry other kinds.
func statusFor(err error) int {
	switch {
	case errors.Is(err, krypterr.ErrConfirmationFailed):
		return http.StatusInternalServerError
	case errors.Is(err, krypterr.ErrAlreadySubmitting), errors.Is(err, krypterr.ErrNotConnected):
		return http.StatusConflict
	case errors.Is(err, krypterr.ErrWalletUnavailable):
		return http.StatusPreconditionFailed
	case errors.Is(err, krypterr.ErrUserDenied):
		return http.StatusUnauthorized
	case errors.Is(err, krypterr.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, krypterr.ErrNetworkError), errors.Is(err, krypterr.ErrTransferRejected):
		return http.StatusBadGateway
	case krypterr.ExitCode(err) == krypterr.ExitInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
