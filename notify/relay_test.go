package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var errDown = errors.New("channel down")

func TestRelay_FirstNotificationSuppressed(t *testing.T) {
	f := &fakeSender{}
	r := NewRelay(f)

	r.Notify(context.Background(), "restarted", false)
	require.Equal(t, 0, f.attempts)
	require.Equal(t, 0, r.Pending())

	r.Notify(context.Background(), "for real", false)
	require.Equal(t, 1, f.attempts)
	require.Equal(t, []sentMessage{{text: "for real"}}, f.sends)
}

func TestRelay_FailureEnqueues(t *testing.T) {
	f := &fakeSender{results: []error{errDown, errDown}}
	r := NewRelay(f)
	r.Notify(context.Background(), "boot", false) // suppressed

	r.Notify(context.Background(), "m1", false)
	require.Equal(t, 1, r.Pending())

	r.Notify(context.Background(), "m2", true)
	require.Equal(t, 2, r.Pending())
	require.Empty(t, f.sends)
}

func TestRelay_SuccessDrainsOldestFirst(t *testing.T) {
	f := &fakeSender{results: []error{errDown, errDown}}
	r := NewRelay(f)
	r.Notify(context.Background(), "boot", false) // suppressed

	r.Notify(context.Background(), "m1", false)
	r.Notify(context.Background(), "m2", true)
	require.Equal(t, 2, r.Pending())

	// Channel recovered, the next delivery flushes the backlog.
	r.Notify(context.Background(), "m3", false)
	require.Equal(t, 0, r.Pending())
	require.Len(t, f.sends, 3)

	require.Equal(t, sentMessage{text: "m3"}, f.sends[0])

	require.True(t, strings.HasPrefix(f.sends[1].text, "m1\n\n"))
	require.Contains(t, f.sends[1].text, "This is a delayed message from ")
	require.False(t, f.sends[1].rich)

	require.True(t, strings.HasPrefix(f.sends[2].text, "m2\n\n"))
	require.True(t, f.sends[2].rich)
}

func TestRelay_DrainFailureRequeuesAtBack(t *testing.T) {
	f := &fakeSender{results: []error{errDown, errDown}}
	r := NewRelay(f)
	r.Notify(context.Background(), "boot", false) // suppressed

	r.Notify(context.Background(), "m1", false)
	r.Notify(context.Background(), "m2", false)

	// m3 and the drained m1 go through, m2 fails again and requeues.
	f.results = []error{nil, nil, errDown}
	r.Notify(context.Background(), "m3", false)
	require.Equal(t, 1, r.Pending())
	require.Len(t, f.sends, 2)
	require.Equal(t, "m3", f.sends[0].text)
	require.True(t, strings.HasPrefix(f.sends[1].text, "m1\n\n"))

	// Next success flushes the leftover.
	r.Notify(context.Background(), "m4", false)
	require.Equal(t, 0, r.Pending())
	require.Equal(t, "m4", f.sends[2].text)
	require.True(t, strings.HasPrefix(f.sends[3].text, "m2\n\n"))
}

func TestRelay_DrainIsOnePass(t *testing.T) {
	f := &fakeSender{results: []error{errDown}}
	r := NewRelay(f)
	r.Notify(context.Background(), "boot", false) // suppressed

	r.Notify(context.Background(), "m1", false)
	require.Equal(t, 1, r.Pending())

	// The triggering send succeeds, the drained m1 fails and requeues.
	// Were the pass to revisit requeued items it would send m1 now, since
	// the scripted failures are exhausted.
	f.results = []error{nil, errDown}
	attempts := f.attempts
	r.Notify(context.Background(), "m2", false)
	require.Equal(t, 1, r.Pending())
	require.Equal(t, attempts+2, f.attempts)
}

func TestRelay_AnnotationFormats(t *testing.T) {
	f := &fakeSender{results: []error{errDown, errDown}}
	r := NewRelay(f)
	r.Notify(context.Background(), "boot", false) // suppressed

	r.Notify(context.Background(), "plain msg", false)
	r.Notify(context.Background(), "rich msg", true)

	f.results = nil
	r.Notify(context.Background(), "trigger", false)
	require.Len(t, f.sends, 3)

	plain := f.sends[1].text
	require.True(t, strings.HasSuffix(plain, "."))
	require.Contains(t, plain, "\n\nThis is a delayed message from ")
	require.NotContains(t, plain, "`")

	rich := f.sends[2].text
	require.Contains(t, rich, "\n\n_This is a delayed message from `")
	require.True(t, strings.HasSuffix(rich, "`\\._"))
}

func TestNop(t *testing.T) {
	var n Notifier = Nop{}
	n.Notify(context.Background(), "dropped", false)
}

type sentMessage struct {
	text string
	rich bool
}

type fakeSender struct {
	// results are consumed one per Send; nil means success. Once the
	// list is exhausted every send succeeds.
	results []error

	attempts int
	sends    []sentMessage
}

func (f *fakeSender) Send(_ context.Context, text string, rich bool) error {
	f.attempts++
	var err error
	if len(f.results) > 0 {
		err = f.results[0]
		f.results = f.results[1:]
	}
	if err != nil {
		return err
	}
	f.sends = append(f.sends, sentMessage{text: text, rich: rich})
	return nil
}
