// Package gimbal implements the actuator and feedback sides of the control
// loop against real and simulated hardware. The SIYI client speaks the
// vendor's UDP framing; the simulator integrates velocity commands for tests
// and bench runs without a gimbal attached.
package gimbal

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"sync"
	"time"

	"github.com/skyward-uas/gimbal-director/internal/geo"
	"github.com/skyward-uas/gimbal-director/pkg/core"
)

// ErrNotConnected is returned before the client has a socket.
var ErrNotConnected = errors.New("gimbal not connected")

// ErrFeedbackStale is returned when no attitude report arrived within the
// staleness bound.
var ErrFeedbackStale = errors.New("gimbal feedback stale")

// MountDirection is how the gimbal is bolted to the airframe, reported by the
// hardware config query.
type MountDirection int

const (
	MountUnknown MountDirection = iota
	MountNormal
	MountUpsideDown
)

func (m MountDirection) String() string {
	switch m {
	case MountNormal:
		return "normal"
	case MountUpsideDown:
		return "upside_down"
	default:
		return "unknown"
	}
}

// SIYIConfig parameterizes the UDP client.
type SIYIConfig struct {
	// Addr is the gimbal's UDP host:port.
	Addr string
	// StreamHz requests attitude reports at this rate.
	StreamHz int
	// StaleAfter bounds how old the last attitude report may be before
	// CurrentAngles reports unavailable.
	StaleAfter time.Duration
	// KeepaliveEvery re-sends the stream enable request; the hardware drops
	// the stream silently without it.
	KeepaliveEvery time.Duration
}

// DefaultSIYIConfig returns the tuning used against the ZR10.
func DefaultSIYIConfig() SIYIConfig {
	return SIYIConfig{
		Addr:           "192.168.144.25:37260",
		StreamHz:       10,
		StaleAfter:     3 * time.Second,
		KeepaliveEvery: 1500 * time.Millisecond,
	}
}

// SIYI is a UDP client for SIYI gimbals. It implements both sides of the
// control loop: velocity commands out, attitude reports in.
type SIYI struct {
	cfg SIYIConfig
	log *slog.Logger

	mu         sync.Mutex
	conn       *net.UDPConn
	seq        uint16
	yaw        float64
	pitch      float64
	lastReport time.Time
	mount      MountDirection

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewSIYI creates a client; call Start before use.
func NewSIYI(cfg SIYIConfig, log *slog.Logger) *SIYI {
	if log == nil {
		log = slog.Default()
	}
	if cfg.StreamHz <= 0 {
		cfg.StreamHz = 10
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 3 * time.Second
	}
	if cfg.KeepaliveEvery <= 0 {
		cfg.KeepaliveEvery = 1500 * time.Millisecond
	}
	return &SIYI{
		cfg:  cfg,
		log:  log,
		seq:  1,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start opens the socket, requests the mount configuration and enables the
// attitude stream. The receive loop runs until Stop.
func (s *SIYI) Start() error {
	addr, err := net.ResolveUDPAddr("udp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("resolving gimbal address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return fmt.Errorf("dialing gimbal: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.sendFrame(cmdConfig, nil)
	s.enableStream()

	go s.rxLoop()
	s.log.Info("gimbal connected", "addr", s.cfg.Addr, "streamHz", s.cfg.StreamHz)
	return nil
}

// Stop closes the socket and ends the receive loop.
func (s *SIYI) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close()
		}
		s.mu.Unlock()
		<-s.done
	})
}

// SetVelocity sends a jog command. Speeds are clamped to the protocol's
// [-100,100] range.
func (s *SIYI) SetVelocity(ctx context.Context, cmd core.ControlCommand) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	y := int8(geo.Clamp(float64(cmd.YawSpeed), -100, 100))
	p := int8(geo.Clamp(float64(cmd.PitchSpeed), -100, 100))
	return s.sendFrame(cmdJog, []byte{byte(y), byte(p)})
}

// SetAngle issues a single proportional jog toward an absolute yaw/pitch,
// the open-loop counterpart of the closed control loop: one frame, no
// retry. speed caps the jog magnitude in protocol units. Requires fresh
// attitude feedback to measure the remaining travel from.
func (s *SIYI) SetAngle(ctx context.Context, yawDeg, pitchDeg float64, speed int) error {
	current, err := s.CurrentAngles(ctx)
	if err != nil {
		return err
	}
	cmd, ok := jogToward(current, yawDeg, pitchDeg, speed)
	if !ok {
		return nil
	}
	return s.SetVelocity(ctx, cmd)
}

// jogToward computes one proportional jog from current toward the absolute
// target angles. The pitch target is clamped just short of the mechanical
// limit and yaw takes the shortest path; within a degree on both axes no
// motion is needed. Positive jog pitch drives the camera down, so the pitch
// polarity inverts here.
func jogToward(current core.GimbalAngles, yawDeg, pitchDeg float64, speed int) (core.ControlCommand, bool) {
	pitchDeg = geo.Clamp(pitchDeg, -89, 89)
	yawDiff := geo.YawDelta(geo.Wrap360(yawDeg), current.Yaw)
	pitchDiff := pitchDeg - current.Pitch
	if math.Abs(yawDiff) < 1 && math.Abs(pitchDiff) < 1 {
		return core.ControlCommand{}, false
	}

	max := geo.Clamp(float64(speed), 0, 100)
	return core.ControlCommand{
		YawSpeed:   int(math.Round(geo.Clamp(yawDiff/90*max, -max, max))),
		PitchSpeed: int(math.Round(geo.Clamp(-pitchDiff/90*max, -max, max))),
	}, true
}

// Center homes the gimbal.
func (s *SIYI) Center(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.sendFrame(cmdCenter, []byte{0x01})
}

// CurrentAngles returns the latest attitude report, corrected for mount
// direction. Stale or absent reports surface as errors so the control loop
// holds instead of acting on dead data.
func (s *SIYI) CurrentAngles(ctx context.Context) (core.GimbalAngles, error) {
	if err := ctx.Err(); err != nil {
		return core.GimbalAngles{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return core.GimbalAngles{}, ErrNotConnected
	}
	if s.lastReport.IsZero() || time.Since(s.lastReport) > s.cfg.StaleAfter {
		return core.GimbalAngles{}, ErrFeedbackStale
	}

	pitch, yaw := correctMount(s.mount, s.pitch, s.yaw)
	return core.GimbalAngles{Pitch: pitch, Yaw: yaw, Time: s.lastReport}, nil
}

// Mount reports the hardware-configured mount direction.
func (s *SIYI) Mount() MountDirection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mount
}

// correctMount maps raw reported angles into airframe-relative angles. An
// upside-down mount reflects pitch and spins yaw half a turn.
func correctMount(m MountDirection, pitch, yaw float64) (float64, float64) {
	if m == MountUpsideDown {
		return -pitch, geo.Wrap360(yaw + 180)
	}
	return pitch, yaw
}

func (s *SIYI) enableStream() {
	freqMap := map[int]byte{0: 0, 2: 1, 4: 2, 5: 3, 10: 4, 20: 5, 50: 6, 100: 7}
	code, ok := freqMap[s.cfg.StreamHz]
	if !ok {
		code = 4 // 10Hz
	}
	s.sendFrame(cmdStreamFreq, []byte{1, code}) // data type 1 = attitude
}

func (s *SIYI) sendFrame(cmd byte, payload []byte) error {
	s.mu.Lock()
	conn := s.conn
	seq := s.seq
	s.seq++
	s.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}
	if _, err := conn.Write(buildFrame(seq, cmd, payload)); err != nil {
		return fmt.Errorf("sending frame 0x%02X: %w", cmd, err)
	}
	return nil
}

func (s *SIYI) rxLoop() {
	defer close(s.done)
	buf := make([]byte, 2048)
	lastEnable := time.Now()

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		if time.Since(lastEnable) > s.cfg.KeepaliveEvery {
			s.enableStream()
			lastEnable = time.Now()
		}

		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn == nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(time.Second))
		n, err := conn.Read(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				// Nudge the hardware; some firmwares stall the stream.
				s.sendFrame(cmdAttitude, nil)
				continue
			}
			s.log.Warn("gimbal receive error", "error", err)
			continue
		}
		s.handlePacket(buf[:n])
	}
}

func (s *SIYI) handlePacket(raw []byte) {
	cmd, payload, err := parseFrame(raw)
	if err != nil {
		s.log.Debug("dropping malformed gimbal packet", "error", err)
		return
	}

	switch cmd {
	case cmdAttitude:
		if len(payload) < 6 {
			return
		}
		yaw := float64(int16(binary.LittleEndian.Uint16(payload[0:2]))) / 10.0
		pitch := float64(int16(binary.LittleEndian.Uint16(payload[2:4]))) / 10.0

		s.mu.Lock()
		s.yaw = geo.Wrap360(yaw)
		s.pitch = normPitch(pitch - 180)
		s.lastReport = time.Now()
		s.mu.Unlock()

	case cmdConfig:
		if len(payload) < 6 {
			return
		}
		mount := MountUnknown
		switch payload[5] {
		case 1:
			mount = MountNormal
		case 2:
			mount = MountUpsideDown
		}
		s.mu.Lock()
		changed := s.mount != mount
		s.mount = mount
		s.mu.Unlock()
		if changed {
			s.log.Info("gimbal mount direction", "mount", mount)
		}
	}
}

// normPitch folds a pitch report into [-180,180].
func normPitch(p float64) float64 {
	for p > 180 {
		p -= 360
	}
	for p < -180 {
		p += 360
	}
	return p
}
