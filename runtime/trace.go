package runtime

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/superstar54/AEP/store"
	"github.com/superstar54/AEP/types"
	"github.com/superstar54/AEP/utils"
)

// traceRecorder persists one record per dispatched task. Traces are
// advisory: a write failure is logged, it never fails the run.
type traceRecorder struct {
	st      store.Store
	graphID string
}

func newTraceRecorder(st store.Store, graphID string) *traceRecorder {
	return &traceRecorder{st: st, graphID: graphID}
}

func (tr *traceRecorder) save(ctx context.Context, rec *types.TaskTraceRecord) {
	b, err := utils.Serialize(rec)
	if err != nil {
		log.Errorf("%s failed to serialize trace record for %s: %v", tr.graphID, rec.Task, err)
		return
	}
	if err := tr.st.Set(ctx, RecordPath+tr.graphID, rec.Task, b); err != nil {
		log.Errorf("%s failed to save trace record for %s: %v", tr.graphID, rec.Task, err)
	}
}
