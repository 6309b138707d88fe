package clock

// Tracked wire field names, in the fixed order used both on the wire
// and in the persistence store.
const (
	FieldTurn             = "turn"
	FieldPause            = "pause"
	FieldNPlayers         = "nPlayers"
	FieldMasterTime       = "masterTime"
	FieldMasterCountdown  = "masterCountdown"
	FieldMasterAdditional = "masterAdditional"
	FieldTimes            = "times"
	FieldCountdowns       = "countdowns"
)

// FieldNames lists every tracked field in wire order.
var FieldNames = []string{
	FieldTurn,
	FieldPause,
	FieldNPlayers,
	FieldMasterTime,
	FieldMasterCountdown,
	FieldMasterAdditional,
	FieldTimes,
	FieldCountdowns,
}

// Delta is a partial clock update: every tracked field is an optional
// slot, nil meaning "not carried by this update". Times and Countdowns
// are in player-index order.
type Delta struct {
	Turn             *int
	Pause            *bool
	NPlayers         *int
	MasterTime       *int
	MasterCountdown  *int
	MasterAdditional *int
	Times            []int64
	Countdowns       []int64
}

// Empty reports whether the delta carries no fields at all.
func (d Delta) Empty() bool {
	return d.Turn == nil && d.Pause == nil && d.NPlayers == nil &&
		d.MasterTime == nil && d.MasterCountdown == nil &&
		d.MasterAdditional == nil && d.Times == nil && d.Countdowns == nil
}
