package orchestration

import (
	"context"
	"fmt"
)

type componentCall func(context.Context) error

func panicSafeComponentCall(name, phase string, run func(context.Context) error) componentCall {
	return func(ctx context.Context) (err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				err = fmt.Errorf("%s %s panicked: %v", name, phase, recovered)
			}
		}()

		if err = run(ctx); err != nil {
			return fmt.Errorf("%s %s failed: %w", name, phase, err)
		}

		return nil
	}
}
