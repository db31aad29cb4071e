package bus

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeworks/devsquad/core"
)

type recorder struct {
	got []core.Message
}

func (r *recorder) OnMessage(m core.Message) { r.got = append(r.got, m) }

func TestBus_PublishDeliversInOrder(t *testing.T) {
	b := New()
	rec := &recorder{}
	b.Subscribe("task/1", rec)

	var want []string
	for i := 0; i < 5; i++ {
		m := core.NewMessage("task/1", core.RoleManager, core.KindPlan, fmt.Sprintf("step %d", i))
		want = append(want, m.ID)
		b.Publish("task/1", m)
	}

	require.Len(t, rec.got, 5)
	for i, m := range rec.got {
		assert.Equal(t, want[i], m.ID)
	}
}

func TestBus_FanOutInSubscriptionOrder(t *testing.T) {
	b := New()
	var order []string
	first := SubscriberFunc(func(core.Message) { order = append(order, "first") })
	second := SubscriberFunc(func(core.Message) { order = append(order, "second") })
	b.Subscribe("task/1", first)
	b.Subscribe("task/1", second)

	b.Publish("task/1", core.NewMessage("task/1", core.RoleUser, core.KindPlan, "go"))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestBus_NoRetroactiveDelivery(t *testing.T) {
	b := New()
	b.Publish("task/1", core.NewMessage("task/1", core.RoleUser, core.KindPlan, "early"))

	rec := &recorder{}
	b.Subscribe("task/1", rec)
	assert.Empty(t, rec.got, "subscription must not replay history")

	b.Publish("task/1", core.NewMessage("task/1", core.RoleManager, core.KindPlan, "late"))
	require.Len(t, rec.got, 1)
	assert.Equal(t, "late", rec.got[0].Body)
}

func TestBus_TopicIsolation(t *testing.T) {
	b := New()
	rec := &recorder{}
	b.Subscribe("task/1", rec)

	b.Publish("task/2", core.NewMessage("task/2", core.RoleUser, core.KindPlan, "other"))
	assert.Empty(t, rec.got)
}

func TestBus_DuplicateSubscribeIgnored(t *testing.T) {
	b := New()
	rec := &recorder{}
	b.Subscribe("task/1", rec)
	b.Subscribe("task/1", rec)

	b.Publish("task/1", core.NewMessage("task/1", core.RoleUser, core.KindPlan, "once"))
	assert.Len(t, rec.got, 1)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := New()
	rec := &recorder{}
	b.Subscribe("task/1", rec)
	b.Unsubscribe("task/1", rec)

	b.Publish("task/1", core.NewMessage("task/1", core.RoleUser, core.KindPlan, "gone"))
	assert.Empty(t, rec.got)
}

func TestBus_HistoryReturnsCopy(t *testing.T) {
	b := New()
	m := core.NewMessage("task/1", core.RoleUser, core.KindPlan, "task")
	b.Publish("task/1", m)

	hist := b.History("task/1")
	require.Len(t, hist, 1)
	hist[0] = core.NewMessage("task/1", core.RoleExecutor, core.KindError, "mutated")

	again := b.History("task/1")
	assert.Equal(t, m.ID, again[0].ID)
}
