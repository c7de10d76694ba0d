package protocol

// AgentMessage is any outbound telemetry frame the agent transport can
// enrich with its tab id before send.
type AgentMessage interface {
	SetTabID(int)
	MessageType() string
}

func (m *Hello) SetTabID(id int)    { m.TabID = id }
func (m *Hello) MessageType() string { return TypeHello }

func (m *Snapshot) SetTabID(id int)    { m.TabID = id }
func (m *Snapshot) MessageType() string { return TypeSnapshot }

func (m *Delta) SetTabID(id int)    { m.TabID = id }
func (m *Delta) MessageType() string { return TypeDelta }

func (m *Pointer) SetTabID(id int)    { m.TabID = id }
func (m *Pointer) MessageType() string { return TypePointer }

func (m *Event) SetTabID(id int)    { m.TabID = id }
func (m *Event) MessageType() string { return TypeEvent }

func (m *Heartbeat) SetTabID(id int)    { m.TabID = id }
func (m *Heartbeat) MessageType() string { return TypeHeartbeat }

func (m *Ack) SetTabID(id int)    { m.TabID = id }
func (m *Ack) MessageType() string { return TypeAck }
