package schema

import "strings"

// Discriminator prefixes carried by every message type on the shared channel.
const (
	AppEventKey   = "@w3m-app/"
	FrameEventKey = "@w3m-frame/"
	RPCMethodKey  = "RPC_"

	successSuffix = "_SUCCESS"
	errorSuffix   = "_ERROR"
)

// Kind names one request family. An app event of a kind is answered by the
// frame event pair of the same kind.
type Kind string

const (
	KindSwitchNetwork    Kind = "SWITCH_NETWORK"
	KindConnectEmail     Kind = "CONNECT_EMAIL"
	KindConnectDevice    Kind = "CONNECT_DEVICE"
	KindConnectOtp       Kind = "CONNECT_OTP"
	KindGetUser          Kind = "GET_USER"
	KindSignOut          Kind = "SIGN_OUT"
	KindIsConnected      Kind = "IS_CONNECTED"
	KindGetChainID       Kind = "GET_CHAIN_ID"
	KindRPCRequest       Kind = "RPC_REQUEST"
	KindUpdateEmail      Kind = "UPDATE_EMAIL"
	KindAwaitUpdateEmail Kind = "AWAIT_UPDATE_EMAIL"
	KindSyncTheme        Kind = "SYNC_THEME"
	KindSyncDappData     Kind = "SYNC_DAPP_DATA"

	// KindSessionUpdate is only ever sent by the frame and has no request.
	KindSessionUpdate Kind = "SESSION_UPDATE"
)

// RequestKinds lists every kind an application may send.
var RequestKinds = []Kind{
	KindSwitchNetwork,
	KindConnectEmail,
	KindConnectDevice,
	KindConnectOtp,
	KindGetUser,
	KindSignOut,
	KindIsConnected,
	KindGetChainID,
	KindRPCRequest,
	KindUpdateEmail,
	KindAwaitUpdateEmail,
	KindSyncTheme,
	KindSyncDappData,
}

func (k Kind) AppType() string {
	return AppEventKey + string(k)
}

func (k Kind) SuccessType() string {
	return FrameEventKey + string(k) + successSuffix
}

func (k Kind) ErrorType() string {
	return FrameEventKey + string(k) + errorSuffix
}

// App event types.
const (
	AppSwitchNetwork    = AppEventKey + "SWITCH_NETWORK"
	AppConnectEmail     = AppEventKey + "CONNECT_EMAIL"
	AppConnectDevice    = AppEventKey + "CONNECT_DEVICE"
	AppConnectOtp       = AppEventKey + "CONNECT_OTP"
	AppGetUser          = AppEventKey + "GET_USER"
	AppSignOut          = AppEventKey + "SIGN_OUT"
	AppIsConnected      = AppEventKey + "IS_CONNECTED"
	AppGetChainID       = AppEventKey + "GET_CHAIN_ID"
	AppRPCRequest       = AppEventKey + "RPC_REQUEST"
	AppUpdateEmail      = AppEventKey + "UPDATE_EMAIL"
	AppAwaitUpdateEmail = AppEventKey + "AWAIT_UPDATE_EMAIL"
	AppSyncTheme        = AppEventKey + "SYNC_THEME"
	AppSyncDappData     = AppEventKey + "SYNC_DAPP_DATA"
)

// Frame event types.
const (
	FrameSwitchNetworkSuccess    = FrameEventKey + "SWITCH_NETWORK_SUCCESS"
	FrameSwitchNetworkError      = FrameEventKey + "SWITCH_NETWORK_ERROR"
	FrameConnectEmailSuccess     = FrameEventKey + "CONNECT_EMAIL_SUCCESS"
	FrameConnectEmailError       = FrameEventKey + "CONNECT_EMAIL_ERROR"
	FrameConnectDeviceSuccess    = FrameEventKey + "CONNECT_DEVICE_SUCCESS"
	FrameConnectDeviceError      = FrameEventKey + "CONNECT_DEVICE_ERROR"
	FrameConnectOtpSuccess       = FrameEventKey + "CONNECT_OTP_SUCCESS"
	FrameConnectOtpError         = FrameEventKey + "CONNECT_OTP_ERROR"
	FrameGetUserSuccess          = FrameEventKey + "GET_USER_SUCCESS"
	FrameGetUserError            = FrameEventKey + "GET_USER_ERROR"
	FrameSignOutSuccess          = FrameEventKey + "SIGN_OUT_SUCCESS"
	FrameSignOutError            = FrameEventKey + "SIGN_OUT_ERROR"
	FrameIsConnectedSuccess      = FrameEventKey + "IS_CONNECTED_SUCCESS"
	FrameIsConnectedError        = FrameEventKey + "IS_CONNECTED_ERROR"
	FrameGetChainIDSuccess       = FrameEventKey + "GET_CHAIN_ID_SUCCESS"
	FrameGetChainIDError         = FrameEventKey + "GET_CHAIN_ID_ERROR"
	FrameRPCRequestSuccess       = FrameEventKey + "RPC_REQUEST_SUCCESS"
	FrameRPCRequestError         = FrameEventKey + "RPC_REQUEST_ERROR"
	FrameSessionUpdate           = FrameEventKey + "SESSION_UPDATE"
	FrameUpdateEmailSuccess      = FrameEventKey + "UPDATE_EMAIL_SUCCESS"
	FrameUpdateEmailError        = FrameEventKey + "UPDATE_EMAIL_ERROR"
	FrameAwaitUpdateEmailSuccess = FrameEventKey + "AWAIT_UPDATE_EMAIL_SUCCESS"
	FrameAwaitUpdateEmailError   = FrameEventKey + "AWAIT_UPDATE_EMAIL_ERROR"
	FrameSyncThemeSuccess        = FrameEventKey + "SYNC_THEME_SUCCESS"
	FrameSyncThemeError          = FrameEventKey + "SYNC_THEME_ERROR"
	FrameSyncDappDataSuccess     = FrameEventKey + "SYNC_DAPP_DATA_SUCCESS"
	FrameSyncDappDataError       = FrameEventKey + "SYNC_DAPP_DATA_ERROR"
)

// Outcome tells a success reply from an error reply.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeSuccess
	OutcomeError
)

// ParseFrameType splits a frame event type into its kind and outcome.
// SESSION_UPDATE yields OutcomeNone.
func ParseFrameType(t string) (Kind, Outcome, bool) {
	if !strings.HasPrefix(t, FrameEventKey) {
		return "", OutcomeNone, false
	}
	rest := strings.TrimPrefix(t, FrameEventKey)
	switch {
	case strings.HasSuffix(rest, successSuffix):
		return Kind(strings.TrimSuffix(rest, successSuffix)), OutcomeSuccess, true
	case strings.HasSuffix(rest, errorSuffix):
		return Kind(strings.TrimSuffix(rest, errorSuffix)), OutcomeError, true
	case rest == string(KindSessionUpdate):
		return KindSessionUpdate, OutcomeNone, true
	}
	return "", OutcomeNone, false
}

// ParseAppType returns the kind of an app event type.
func ParseAppType(t string) (Kind, bool) {
	if !strings.HasPrefix(t, AppEventKey) {
		return "", false
	}
	return Kind(strings.TrimPrefix(t, AppEventKey)), true
}

// IsRPCType reports whether a message type belongs to the RPC family.
func IsRPCType(t string) bool {
	return strings.Contains(t, RPCMethodKey)
}
