package session

type audience int

const (
	toConn audience = iota
	toHost
	toParticipants
	toAll
)

// event is one outbound notification produced by a transition. Delivery
// resolves the audience against the session's connections at emit time.
type event struct {
	audience audience
	connID   string
	msgType  string
	payload  interface{}
}

func unicast(connID, msgType string, payload interface{}) event {
	return event{audience: toConn, connID: connID, msgType: msgType, payload: payload}
}

func hostOnly(msgType string, payload interface{}) event {
	return event{audience: toHost, msgType: msgType, payload: payload}
}

func participants(msgType string, payload interface{}) event {
	return event{audience: toParticipants, msgType: msgType, payload: payload}
}

func broadcast(msgType string, payload interface{}) event {
	return event{audience: toAll, msgType: msgType, payload: payload}
}
