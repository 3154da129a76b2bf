package notify

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/jobs"
)

func TestNotifierEnqueuesBillingEvents(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	n := New(client, nil)
	ctx := context.Background()
	owner := uuid.New()

	n.PaymentReceived(ctx, owner, "INV-0001", 700, 500)
	n.InvoicePaid(ctx, owner, "INV-0001")
	n.InvoiceGenerated(ctx, owner, "INV-0002", 300)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	defer inspector.Close()

	info, err := inspector.GetQueueInfo(jobs.QueueDefault)
	require.NoError(t, err)
	require.Equal(t, 3, info.Pending)
}

func TestNotifierSwallowsEnqueueFailures(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	require.NoError(t, err)
	mr.Close()

	n := New(client, nil)
	// Must not panic or surface the broken queue.
	n.InvoicePaid(context.Background(), uuid.New(), "INV-0001")
}

func TestNilClientIsNoop(t *testing.T) {
	n := New(nil, nil)
	n.PaymentReceived(context.Background(), uuid.New(), "INV-0001", 10, 0)
}
