package simenv

// Metrics is a passive performance recorder: the demo driver feeds it
// observations after each Step, and it never feeds anything back into the
// IM or vehicle logic it is watching. This is the "simenv.Metrics"
// performance-indication feature original_source/ tracks (time-to-confirm,
// wait ticks, rejections-before-confirm) that spec.md's distillation
// dropped.
type Metrics struct {
	pending map[string]*pendingRequest
	samples []CrossingSample
}

type pendingRequest struct {
	firstRequestedAt float64
	rejections       int
	waitTicks        int
}

// CrossingSample is one vehicle's completed request-to-confirm history.
type CrossingSample struct {
	VehicleID               string
	TimeToConfirm           float64 // seconds from first Request to the Confirm that stuck
	RejectionsBeforeConfirm int
	WaitTicks               int // ticks spent in a WAITING-equivalent state
}

// NewMetrics returns an empty recorder.
func NewMetrics() *Metrics {
	return &Metrics{pending: make(map[string]*pendingRequest)}
}

// RecordRequest notes that vehicleID sent a Request/ChangeRequest at now.
// Only the first call for a given vehicleID (since its last Confirm) sets
// firstRequestedAt; later calls before a Confirm are treated as retries of
// the same pending negotiation.
func (m *Metrics) RecordRequest(vehicleID string, now float64) {
	p, ok := m.pending[vehicleID]
	if !ok {
		p = &pendingRequest{firstRequestedAt: now}
		m.pending[vehicleID] = p
	}
}

// RecordRejection increments vehicleID's rejection count for its current
// pending negotiation.
func (m *Metrics) RecordRejection(vehicleID string) {
	if p, ok := m.pending[vehicleID]; ok {
		p.rejections++
	}
}

// RecordWaitTick notes one simulation tick vehicleID spent stalled waiting
// for a reservation.
func (m *Metrics) RecordWaitTick(vehicleID string) {
	if p, ok := m.pending[vehicleID]; ok {
		p.waitTicks++
	}
}

// RecordConfirm closes out vehicleID's pending negotiation as of now,
// appending a CrossingSample and forgetting the pending state so a later
// Change-Request starts a fresh one.
func (m *Metrics) RecordConfirm(vehicleID string, now float64) {
	p, ok := m.pending[vehicleID]
	if !ok {
		return
	}
	m.samples = append(m.samples, CrossingSample{
		VehicleID:               vehicleID,
		TimeToConfirm:           now - p.firstRequestedAt,
		RejectionsBeforeConfirm: p.rejections,
		WaitTicks:               p.waitTicks,
	})
	delete(m.pending, vehicleID)
}

// Samples returns every completed crossing sample recorded so far.
func (m *Metrics) Samples() []CrossingSample {
	return m.samples
}
