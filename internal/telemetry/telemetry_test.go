package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/skyward-uas/gimbal-director/pkg/core"
)

func sample() core.AircraftState {
	return core.AircraftState{
		Position: core.GeoPosition{Latitude: 47.4085, Longitude: 8.5490, Altitude: 1200, AltRef: core.AGL},
		Heading:  231,
		Time:     time.Now(),
	}
}

func TestManager_StaleBeforeFirstUpdate(t *testing.T) {
	m := NewManager(time.Second)
	if _, err := m.CurrentState(); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
}

func TestManager_ReturnsLatestSnapshot(t *testing.T) {
	m := NewManager(time.Second)
	m.Update(sample())
	got, err := m.CurrentState()
	if err != nil {
		t.Fatal(err)
	}
	if got.Heading != 231 {
		t.Errorf("expected heading 231, got %f", got.Heading)
	}
	if m.LastUpdated().IsZero() {
		t.Error("expected last-updated timestamp")
	}
}

func TestManager_StaleAfterThreshold(t *testing.T) {
	m := NewManager(time.Millisecond)
	m.Update(sample())
	time.Sleep(5 * time.Millisecond)
	if _, err := m.CurrentState(); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale after threshold, got %v", err)
	}
}

func TestManager_ZeroThresholdNeverStale(t *testing.T) {
	m := NewManager(0)
	m.Update(sample())
	time.Sleep(2 * time.Millisecond)
	if _, err := m.CurrentState(); err != nil {
		t.Fatalf("expected snapshot with staleness disabled, got %v", err)
	}
}

type scriptedSource struct {
	states chan core.AircraftState
}

func (s *scriptedSource) CurrentState() (core.AircraftState, error) {
	select {
	case st := <-s.states:
		return st, nil
	default:
		return core.AircraftState{}, errors.New("no data")
	}
}

func TestPoller_FeedsManager(t *testing.T) {
	src := &scriptedSource{states: make(chan core.AircraftState, 1)}
	src.states <- sample()
	m := NewManager(time.Second)
	p := NewPoller(src, m, PollerConfig{PollInterval: time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	deadline := time.After(time.Second)
	for {
		if _, err := m.CurrentState(); err == nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("poller never fed the manager")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestListener_ReceivesDatagrams(t *testing.T) {
	m := NewManager(time.Second)
	l := NewListener("127.0.0.1:0", m, nil)

	// Bind explicitly so the test knows the port.
	laddr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		t.Fatal(err)
	}
	l.addr = conn.LocalAddr().String()
	conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Start(ctx)
	time.Sleep(20 * time.Millisecond)

	payload, err := json.Marshal(sample())
	if err != nil {
		t.Fatal(err)
	}
	out, err := net.Dial("udp", l.addr)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()

	deadline := time.After(2 * time.Second)
	for {
		if _, err := out.Write(payload); err != nil {
			t.Fatal(err)
		}
		if st, err := m.CurrentState(); err == nil {
			if st.Heading != 231 {
				t.Errorf("expected heading 231, got %f", st.Heading)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("listener never delivered a snapshot")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
