package schema

// RPC methods the frame accepts.
const (
	RPCPersonalSign            = "personal_sign"
	RPCEthSendTransaction      = "eth_sendTransaction"
	RPCEthAccounts             = "eth_accounts"
	RPCEthGetBalance           = "eth_getBalance"
	RPCEthEstimateGas          = "eth_estimateGas"
	RPCEthGasPrice             = "eth_gasPrice"
	RPCEthSignTypedDataV4      = "eth_signTypedData_v4"
	RPCEthGetTransactionByHash = "eth_getTransactionByHash"
	RPCEthBlockNumber          = "eth_blockNumber"
	RPCEthChainID              = "eth_chainId"
)

// rpcMethods maps an allowed method to whether it carries params.
var rpcMethods = map[string]bool{
	RPCPersonalSign:            true,
	RPCEthSendTransaction:      true,
	RPCEthAccounts:             false,
	RPCEthGetBalance:           true,
	RPCEthEstimateGas:          true,
	RPCEthGasPrice:             false,
	RPCEthSignTypedDataV4:      true,
	RPCEthGetTransactionByHash: true,
	RPCEthBlockNumber:          false,
	RPCEthChainID:              false,
}

// IsAllowedRPCMethod reports whether method may cross the boundary.
func IsAllowedRPCMethod(method string) bool {
	_, ok := rpcMethods[method]
	return ok
}

// -- Requests ---------------------------------------------------------------

type SwitchNetworkRequest struct {
	ChainID int64 `json:"chainId"`
}

type ConnectEmailRequest struct {
	Email string `json:"email"`
}

type ConnectOtpRequest struct {
	Otp string `json:"otp"`
}

type GetUserRequest struct {
	ChainID *int64 `json:"chainId,omitempty"`
}

// SessionToken is the IS_CONNECTED request and the SESSION_UPDATE payload.
type SessionToken struct {
	Token string `json:"token"`
}

type RPCRequest struct {
	Method string        `json:"method"`
	Params []interface{} `json:"params,omitempty"`
}

type UpdateEmailRequest struct {
	Email string `json:"email"`
}

type ThemeMode string

const (
	ThemeLight ThemeMode = "light"
	ThemeDark  ThemeMode = "dark"
)

type SyncThemeRequest struct {
	ThemeMode ThemeMode `json:"themeMode,omitempty"`
	// ThemeVariables values must be strings or numbers.
	ThemeVariables map[string]interface{} `json:"themeVariables,omitempty"`
}

type DappMetadata struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	URL         string   `json:"url" yaml:"url"`
	Icons       []string `json:"icons" yaml:"icons"`
}

type SyncDappDataRequest struct {
	Metadata   *DappMetadata `json:"metadata,omitempty"`
	SdkVersion string        `json:"sdkVersion"`
	ProjectID  string        `json:"projectId"`
}

// -- Responses --------------------------------------------------------------

type ConnectEmailAction string

const (
	ActionVerifyDevice ConnectEmailAction = "VERIFY_DEVICE"
	ActionVerifyOtp    ConnectEmailAction = "VERIFY_OTP"
)

type ConnectEmailResponse struct {
	Action ConnectEmailAction `json:"action"`
}

type GetUserResponse struct {
	Email   string `json:"email"`
	Address string `json:"address"`
	ChainID int64  `json:"chainId"`
}

type IsConnectedResponse struct {
	IsConnected bool `json:"isConnected"`
}

// ChainIDResponse answers GET_CHAIN_ID and SWITCH_NETWORK.
type ChainIDResponse struct {
	ChainID int64 `json:"chainId"`
}

type AwaitUpdateEmailResponse struct {
	Email string `json:"email"`
}

// ErrorPayload is carried by every *_ERROR frame event.
type ErrorPayload struct {
	Message string `json:"message"`
}
