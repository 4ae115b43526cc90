package vehicle

import (
	"context"
)

type Vehicle interface {
	Init() error
	Start(context.Context) error
	Stop() error
}
