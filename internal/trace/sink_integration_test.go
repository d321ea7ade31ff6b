//go:build integration

package trace

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/OFF-rtk/sentinel-auditor/internal/platform/kafka"
	"github.com/OFF-rtk/sentinel-auditor/internal/platform/logger"
	"github.com/OFF-rtk/sentinel-auditor/internal/platform/postgres"
	"github.com/OFF-rtk/sentinel-auditor/pkg/testutil/containers"
)

func TestPostgresSinkRoundTrip(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	ctx := context.Background()

	db, err := postgres.OpenDB(ctx, pg.URL)
	require.NoError(t, err)
	defer db.Close()

	sink, err := NewPostgresSink(db, "agent_traces")
	require.NoError(t, err)
	require.NoError(t, sink.Migrate(ctx))
	require.NoError(t, sink.Migrate(ctx), "migrate is idempotent")

	r := NewRecorder(WithSink(sink), WithLogger(logger.Discard()))
	first := r.Record(ctx, "evt_pg", StageJudge, StatusCompleted, Detail{"verdict": "BLOCK", "confidence": 95})
	r.Record(ctx, "evt_pg", StageEnforcer, StatusBlockConfirmed, nil)
	r.Record(ctx, "other", StageShield, StatusBlocked, nil)

	got, err := sink.ListByEvent(ctx, "evt_pg")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first.ID, got[0].ID)
	assert.Equal(t, StageJudge, got[0].Stage)
	assert.Equal(t, "BLOCK", got[0].Detail["verdict"])
	assert.Equal(t, float64(95), got[0].Detail["confidence"])
	assert.Nil(t, got[1].Detail)
}

func TestKafkaSinkPublishes(t *testing.T) {
	kc := containers.NewKafkaContainer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const topic = "auditor.traces.test"
	producer, err := kafka.NewProducer(ctx, kc.Brokers, topic, logger.Discard())
	require.NoError(t, err)
	defer producer.Close()

	sink, err := NewKafkaSink(producer, topic)
	require.NoError(t, err)
	require.NoError(t, sink.Write(ctx, Record{EventID: "evt_k", Stage: StageIntel, Status: StatusCompleted, Detail: Detail{"found_docs": 2}}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(kc.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "evt_k", string(records[0].Key))

	var decoded Record
	require.NoError(t, json.Unmarshal(records[0].Value, &decoded))
	assert.Equal(t, StageIntel, decoded.Stage)
}
