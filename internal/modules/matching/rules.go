// README: Pair evaluation: bidirectional filter check, then the (myMode, theirMode) outcome table.
package matching

import "slices"

// side names which participant of a pair sends the request.
type side int

const (
	sideMe side = iota
	sideThem
)

type rule struct {
	kind Kind
	by   side
}

type modePair struct {
	me, them Mode
}

var (
	accept      = rule{kind: KindAccepted, by: sideMe}
	requestMe   = rule{kind: KindPending, by: sideMe}
	requestThem = rule{kind: KindPending, by: sideThem}
	noMatch     = rule{kind: KindNone}
)

// modeTable is every (acting user, candidate) mode pair. Rows where the
// listing is ambiguous resolve by first match, top to bottom:
//
//	everyone/everyone                     accepted
//	everyone/auto_friends (either order)  accepted
//	everyone/anything else (either order) pending, everyone side requests
//	auto_friends/auto_friends             accepted
//	auto_friends/auto_requests (either)   pending, auto_friends side requests
//	auto_requests/auto_requests           pending, acting user requests
//	receive_all/not manual                pending, other user requests
//	other/receive_all                     pending, acting user requests
//	manual/any                            none
var modeTable = map[modePair]rule{
	{ModeEveryone, ModeEveryone}:     accept,
	{ModeEveryone, ModeAutoFriends}:  accept,
	{ModeEveryone, ModeAutoRequests}: requestMe,
	{ModeEveryone, ModeReceiveAll}:   requestMe,
	{ModeEveryone, ModeManual}:       noMatch,

	{ModeAutoFriends, ModeEveryone}:     accept,
	{ModeAutoFriends, ModeAutoFriends}:  accept,
	{ModeAutoFriends, ModeAutoRequests}: requestMe,
	{ModeAutoFriends, ModeReceiveAll}:   requestMe,
	{ModeAutoFriends, ModeManual}:       noMatch,

	{ModeAutoRequests, ModeEveryone}:     requestThem,
	{ModeAutoRequests, ModeAutoFriends}:  requestThem,
	{ModeAutoRequests, ModeAutoRequests}: requestMe,
	{ModeAutoRequests, ModeReceiveAll}:   requestMe,
	{ModeAutoRequests, ModeManual}:       noMatch,

	{ModeReceiveAll, ModeEveryone}:     requestThem,
	{ModeReceiveAll, ModeAutoFriends}:  requestThem,
	{ModeReceiveAll, ModeAutoRequests}: requestThem,
	{ModeReceiveAll, ModeReceiveAll}:   requestThem,
	{ModeReceiveAll, ModeManual}:       noMatch,

	{ModeManual, ModeEveryone}:     noMatch,
	{ModeManual, ModeAutoFriends}:  noMatch,
	{ModeManual, ModeAutoRequests}: noMatch,
	{ModeManual, ModeReceiveAll}:   noMatch,
	{ModeManual, ModeManual}:       noMatch,
}

// Evaluate decides the relationship between the acting user and a candidate.
// It does not look at existing edges; callers skip connected pairs first.
func Evaluate(me, them Participant) Outcome {
	if me.UserID == them.UserID {
		return Outcome{}
	}
	if !accepts(me, them) || !accepts(them, me) {
		return Outcome{}
	}
	r, ok := modeTable[modePair{me.Prefs.Mode, them.Prefs.Mode}]
	if !ok || r.kind == KindNone {
		return Outcome{}
	}
	out := Outcome{Kind: r.kind, Requester: me.UserID, Addressee: them.UserID}
	if r.by == sideThem {
		out.Requester, out.Addressee = them.UserID, me.UserID
	}
	return out
}

// accepts reports whether viewer's filters let other through.
func accepts(viewer, other Participant) bool {
	switch viewer.Prefs.Mode {
	case ModeManual:
		return false
	case ModeEveryone:
		return true
	}
	p := viewer.Prefs
	if other.Age == nil || *other.Age < p.AgeMin || *other.Age > p.AgeMax {
		return false
	}
	if !genderAllowed(p.Genders, other.Gender) {
		return false
	}
	if other.Rating == nil || *other.Rating < p.RatingMin || *other.Rating > p.RatingMax {
		return false
	}
	return true
}

func genderAllowed(filter []string, gender string) bool {
	if slices.Contains(filter, GenderAll) {
		return true
	}
	return gender != "" && slices.Contains(filter, gender)
}
