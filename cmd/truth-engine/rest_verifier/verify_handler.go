package restverifier

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/venkatnarayana7/Python-Debugger/cmd/truth-engine/model"
	"github.com/venkatnarayana7/Python-Debugger/generator"
	"github.com/venkatnarayana7/Python-Debugger/progress"
)

type verifyHandle struct {
	verifier model.Verifier
	logger   *zap.Logger
}

// NewVerifyHandle creates a new verify handle
func NewVerifyHandle(verifier model.Verifier, logger *zap.Logger) Register {
	return &verifyHandle{
		verifier: verifier,
		logger:   logger,
	}
}

func (v *verifyHandle) Register(r *gin.Engine) {
	r.POST("/verify", v.handleVerify)
}

func (v *verifyHandle) handleVerify(ctx *gin.Context) {
	var req model.Request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.Error(err)
		ctx.AbortWithStatusJSON(http.StatusBadRequest, err.Error())
		return
	}
	sub, err := model.ConvertRequest(&req)
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, err.Error())
		return
	}

	log := progress.New()
	rt := v.verifier.Verify(ctx.Request.Context(), sub, log)
	log.Finish(rt)
	v.logger.Debug("verify finished", zap.String("request", rt.RequestID), zap.Stringer("status", rt.Status))

	ctx.JSON(http.StatusOK, model.Response{
		Result:    model.ConvertResult(rt),
		Events:    model.ConvertEvents(log.Events()),
		Libraries: generator.DetectLibraries(sub.Code),
	})
}
