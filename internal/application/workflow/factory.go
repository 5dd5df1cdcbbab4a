package workflow

import (
	"fmt"

	"github.com/garyjia/recordlight/internal/domain/statemachine"
	"go.uber.org/zap"
)

// BuildEngine verifies the table and creates an engine whose machine runs actions through runner
func BuildEngine(table *statemachine.Table, runner statemachine.ActionRunner, logger *zap.Logger) (Engine, error) {
	if table == nil {
		return nil, fmt.Errorf("transition table is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("action runner is required")
	}

	want := len(statemachine.AllStates()) * len(statemachine.AllInputs())
	if table.Len() != want {
		return nil, fmt.Errorf("%w: %d of %d transitions defined", statemachine.ErrIncompleteTable, table.Len(), want)
	}

	return NewEngine(statemachine.NewMachine(table, runner), WithLogger(logger)), nil
}
