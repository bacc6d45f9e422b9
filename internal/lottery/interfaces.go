package lottery

import (
	"context"

	"gorm.io/gorm"
)

// Observer receives the outcome of every lottery run.
type Observer interface {
	ObserveLottery(outcome string, confirmed int)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type noopObserver struct{}

func (noopObserver) ObserveLottery(string, int) {}
