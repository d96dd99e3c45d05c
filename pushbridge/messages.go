package pushbridge

// BridgeMessageType tells requests from events on the push distributor link.
type BridgeMessageType int32

const (
	BridgeMessage_UNKNOWN BridgeMessageType = 0
	BridgeMessage_REQUEST BridgeMessageType = 1
	BridgeMessage_EVENT   BridgeMessageType = 2
)

type BridgeMessage struct {
	Type    *BridgeMessageType    `json:"type,omitempty"`
	Request *BridgeRequestMessage `json:"request,omitempty"`
	Event   *BridgeEventMessage   `json:"event,omitempty"`
}

type BridgeRequestMessageType int32

const (
	BridgeRequest_UNKNOWN                        BridgeRequestMessageType = 0
	BridgeRequest_REGISTER_NOTIFICATION_SETTINGS BridgeRequestMessageType = 1
	BridgeRequest_REGISTER_REMOTE_NOTIFICATIONS  BridgeRequestMessageType = 2
	BridgeRequest_REGISTER_VOIP                  BridgeRequestMessageType = 3
)

type BridgeRequestMessage struct {
	Type *BridgeRequestMessageType `json:"type,omitempty"`
}

type BridgeEventMessageType int32

const (
	BridgeEvent_UNKNOWN                          BridgeEventMessageType = 0
	BridgeEvent_DEVICE_INFO                      BridgeEventMessageType = 1
	BridgeEvent_NOTIFICATION_SETTINGS_REGISTERED BridgeEventMessageType = 2
	BridgeEvent_STANDARD_TOKEN                   BridgeEventMessageType = 3
	BridgeEvent_STANDARD_TOKEN_FAILED            BridgeEventMessageType = 4
	BridgeEvent_VOIP_TOKEN                       BridgeEventMessageType = 5
	BridgeEvent_VOIP_TOKEN_INVALIDATED           BridgeEventMessageType = 6
)

type BridgeEventMessage struct {
	Type   *BridgeEventMessageType `json:"type,omitempty"`
	Token  []byte                  `json:"token,omitempty"`
	Error  string                  `json:"error,omitempty"`
	Device *DeviceInfo             `json:"device,omitempty"`
}

// DeviceInfo describes the push capabilities reported by the distributor.
type DeviceInfo struct {
	Simulator               bool     `json:"simulator"`
	BackgroundRefreshDenied bool     `json:"background_refresh_denied"`
	SettingsKnown           bool     `json:"settings_known"`
	NotificationTypes       []string `json:"notification_types"`
}
