package registry

import (
	"time"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/protocol"
	"github.com/KallebyX/simao-sub001/pkg/randomizer"
)

var testTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func visitFor(execCtx *models.ExecutionContext) *protocol.Visit {
	return &protocol.Visit{
		Context: execCtx,
		Random:  randomizer.Fixed(0.99),
		Now:     testTime,
	}
}
