package meter

import (
	"time"

	"github.com/halvard/partymeter/transport"
)

// Mode selects which policy opens and closes sessions (spec.md §4.6).
type Mode int

const (
	ModeBattle Mode = iota
	ModeZone
	ModeManual
)

func (m Mode) String() string {
	switch m {
	case ModeBattle:
		return "battle"
	case ModeZone:
		return "zone"
	case ModeManual:
		return "manual"
	default:
		return "unknown"
	}
}

const defaultBattleTimeout = 20 * time.Second

// tick is one applied combat delta, kept only while within the rolling
// window; compacted away on session close (spec.md §3 Stats).
type tick struct {
	ts   time.Time
	dmg  uint64
	heal uint64
}

// Stats holds one actor's running totals and the bounded recent-tick
// window used for rolling DPS/HPS (spec.md §3, §4.7).
type Stats struct {
	Damage uint64
	Heal   uint64
	ticks  []tick
}

func (s *Stats) apply(ts time.Time, dmg, heal uint64) {
	s.Damage += dmg
	s.Heal += heal
	s.ticks = append(s.ticks, tick{ts: ts, dmg: dmg, heal: heal})
}

// prune drops ticks older than now-window, per spec.md §4.7 "before each
// read, prune".
func (s *Stats) prune(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(s.ticks) && s.ticks[i].ts.Before(cutoff) {
		i++
	}
	if i > 0 {
		s.ticks = s.ticks[i:]
	}
}

// rollingRates returns (dps, hps) over the ticks remaining after prune.
func (s *Stats) rollingRates(window time.Duration) (dps, hps float64) {
	var dmg, heal uint64
	for _, t := range s.ticks {
		dmg += t.dmg
		heal += t.heal
	}
	w := window.Seconds()
	if w <= 0 {
		return 0, 0
	}
	return float64(dmg) / w, float64(heal) / w
}

// compact drops the tick window, keeping only totals — called on
// session close (spec.md §4.6 "frozen... compacted to totals only").
func (s *Stats) compact() {
	s.ticks = nil
}

// Session is one time-bounded aggregation window (spec.md §3).
type Session struct {
	ID        uint64
	Mode      Mode
	Label     string
	StartedAt time.Time
	EndedAt   time.Time
	Ended     bool

	PerActor map[string]*Stats
	Fame     uint64

	HasEndpoint bool
	Endpoint    transport.Endpoint

	lastAttributable time.Time
}

func newSession(id uint64, mode Mode, label string, now time.Time) *Session {
	return &Session{
		ID:               id,
		Mode:             mode,
		Label:            label,
		StartedAt:        now,
		PerActor:         make(map[string]*Stats),
		lastAttributable: now,
	}
}

func (s *Session) statsFor(name string) *Stats {
	st, ok := s.PerActor[name]
	if !ok {
		st = &Stats{}
		s.PerActor[name] = st
	}
	return st
}

// ElapsedSeconds returns the session's duration so far (or total, if
// closed).
func (s *Session) ElapsedSeconds(now time.Time) float64 {
	end := now
	if s.Ended {
		end = s.EndedAt
	}
	return end.Sub(s.StartedAt).Seconds()
}

// SessionManager opens, closes, and archives sessions per the active
// Mode (spec.md §4.6). Grounded on rep.Replay/Computed's raw/derived
// split for the Session/Stats boundary, and on a ticker-driven
// cancellable-loop idiom for the battle_timeout check.
type SessionManager struct {
	mode          Mode
	battleTimeout time.Duration
	tickWindow    time.Duration

	current    *Session
	nextID     uint64
	battleSeq  int
	zoneSeq    int
	manualSeq  int
	history    *HistoryRing
	zoneLabels map[transport.Endpoint]string
}

// NewSessionManager returns a SessionManager with the given initial
// mode and tunables (spec.md §1 Config: BattleTimeout, TickWindow,
// HistorySize).
func NewSessionManager(mode Mode, battleTimeout, tickWindow time.Duration, historySize int) *SessionManager {
	if battleTimeout <= 0 {
		battleTimeout = defaultBattleTimeout
	}
	return &SessionManager{
		mode:          mode,
		battleTimeout: battleTimeout,
		tickWindow:    tickWindow,
		history:       newHistoryRing(historySize),
		zoneLabels:    make(map[transport.Endpoint]string),
	}
}

// Current returns the live session, or nil if none is open.
func (m *SessionManager) Current() *Session {
	return m.current
}

// History returns the archived-session ring.
func (m *SessionManager) History() *HistoryRing {
	return m.history
}

func (m *SessionManager) nextLabel(mode Mode, zoneLabel string) string {
	switch mode {
	case ModeBattle:
		m.battleSeq++
		return labelN("Battle", m.battleSeq)
	case ModeManual:
		m.manualSeq++
		return labelN("Manual", m.manualSeq)
	default:
		if zoneLabel != "" {
			return zoneLabel
		}
		m.zoneSeq++
		return labelN("Zone", m.zoneSeq)
	}
}

func labelN(prefix string, n int) string {
	const digits = "0123456789"
	if n < 10 {
		return prefix + " " + string(digits[n])
	}
	// spec examples only show single-digit sequence numbers; fall back
	// to a plain decimal conversion for the general case.
	var buf []byte
	for n > 0 {
		buf = append([]byte{digits[n%10]}, buf...)
		n /= 10
	}
	return prefix + " " + string(buf)
}

func (m *SessionManager) openSession(mode Mode, label string, now time.Time) {
	m.nextID++
	m.current = newSession(m.nextID, mode, label, now)
}

// closeCurrent freezes and archives the live session, if any.
func (m *SessionManager) closeCurrent(now time.Time) {
	if m.current == nil {
		return
	}
	m.current.Ended = true
	m.current.EndedAt = now
	for _, st := range m.current.PerActor {
		st.compact()
	}
	m.history.push(m.current)
	m.current = nil
}

// SetMode switches the active policy, closing any live session under
// the old policy (spec.md §4.6 control input set_mode).
func (m *SessionManager) SetMode(mode Mode, now time.Time) {
	if mode == m.mode {
		return
	}
	m.closeCurrent(now)
	m.mode = mode
}

// ManualToggle opens a session if none is live, or closes the live one,
// and is only meaningful in Manual mode.
func (m *SessionManager) ManualToggle(now time.Time) {
	if m.current == nil {
		m.openSession(ModeManual, m.nextLabel(ModeManual, ""), now)
		return
	}
	m.closeCurrent(now)
}

// ArchiveNow force-closes the live session regardless of mode.
func (m *SessionManager) ArchiveNow(now time.Time) {
	m.closeCurrent(now)
}

// ResetFame zeroes the live session's fame counter.
func (m *SessionManager) ResetFame() {
	if m.current != nil {
		m.current.Fame = 0
	}
}

// EnsureOpenForAttributable opens a session on the first attributable
// event if Battle mode requires it, and always bumps the
// battle-timeout deadline.
func (m *SessionManager) EnsureOpenForAttributable(now time.Time) *Session {
	if m.mode == ModeBattle && m.current == nil {
		m.openSession(ModeBattle, m.nextLabel(ModeBattle, ""), now)
	}
	if m.current != nil {
		m.current.lastAttributable = now
	}
	return m.current
}

// OnCombatStateChange implements Battle mode's self-combat edges
// (spec.md §4.6): entering combat opens a session, leaving closes it.
func (m *SessionManager) OnCombatStateChange(selfInCombat bool, now time.Time) {
	if m.mode != ModeBattle {
		return
	}
	if selfInCombat {
		if m.current == nil {
			m.openSession(ModeBattle, m.nextLabel(ModeBattle, ""), now)
		}
		m.current.lastAttributable = now
		return
	}
	m.closeCurrent(now)
}

// CheckBattleTimeout closes the live Battle session if battle_timeout
// has elapsed since the last attributable event (spec.md §4.6, §8
// scenario 4). Call this periodically (e.g. once per pipeline tick).
func (m *SessionManager) CheckBattleTimeout(now time.Time) {
	if m.mode != ModeBattle || m.current == nil {
		return
	}
	if now.Sub(m.current.lastAttributable) >= m.battleTimeout {
		m.closeCurrent(now)
	}
}

// OnZoneChange implements Zone mode's session-per-endpoint policy
// (spec.md §4.6): closes and archives the current session and opens a
// new one keyed by the new endpoint. In Battle/Manual mode this is a
// no-op for session lifecycle (the roster clear still happens
// separately).
func (m *SessionManager) OnZoneChange(ep transport.Endpoint, label string, now time.Time) {
	if m.mode != ModeZone {
		return
	}
	if label != "" {
		m.zoneLabels[ep] = label
	}
	m.closeCurrent(now)
	m.openSession(ModeZone, m.nextLabel(ModeZone, m.zoneLabels[ep]), now)
	m.current.HasEndpoint = true
	m.current.Endpoint = ep
}

// ApplyAttributable records a resolved combat delta into the live
// session, opening one first if the active policy requires it.
func (m *SessionManager) ApplyAttributable(name string, ts time.Time, dmg, heal uint64) {
	sess := m.EnsureOpenForAttributable(ts)
	if sess == nil {
		return
	}
	sess.statsFor(name).apply(ts, dmg, heal)
}

// ApplyFame accumulates fame into the live session, if any.
func (m *SessionManager) ApplyFame(fame uint64) {
	if m.current != nil {
		m.current.Fame += fame
	}
}

// PruneWindows prunes every live actor's tick window ahead of a
// snapshot read (spec.md §4.7).
func (m *SessionManager) PruneWindows(now time.Time) {
	if m.current == nil {
		return
	}
	for _, st := range m.current.PerActor {
		st.prune(now, m.tickWindow)
	}
}

// TickWindow returns the configured rolling-rate window.
func (m *SessionManager) TickWindow() time.Duration {
	return m.tickWindow
}

// CurrentMode returns the active policy.
func (m *SessionManager) CurrentMode() Mode {
	return m.mode
}
