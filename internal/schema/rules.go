package schema

import (
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"
	"math"
	"strings"
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindEmail
	kindInteger
	kindBool
	kindArray
	kindStringArray
	kindObject
	// kindScalarRecord is an object whose values are strings or numbers.
	kindScalarRecord
)

func (k fieldKind) String() string {
	switch k {
	case kindString:
		return "string"
	case kindEmail:
		return "email"
	case kindInteger:
		return "integer"
	case kindBool:
		return "boolean"
	case kindArray:
		return "array"
	case kindStringArray:
		return "string array"
	case kindObject:
		return "object"
	case kindScalarRecord:
		return "record of string or number"
	}
	return "unknown"
}

type field struct {
	name     string
	kind     fieldKind
	optional bool
	enum     []string
	fields   []field
}

type payloadRule int

const (
	// payloadIgnored types carry no payload; anything sent is dropped.
	payloadIgnored payloadRule = iota
	payloadRequired
	payloadOptional
	payloadAny
)

type shape struct {
	payload payloadRule
	fields  []field
	check   func(payload gjson.Result) (string, string)
}

var validate = validator.New()

var (
	errorShape = shape{payload: payloadRequired, fields: []field{{name: "message", kind: kindString}}}
	emptyShape = shape{payload: payloadIgnored}
	emailShape = shape{payload: payloadRequired, fields: []field{{name: "email", kind: kindEmail}}}
	chainShape = shape{payload: payloadRequired, fields: []field{{name: "chainId", kind: kindInteger}}}
)

var appShapes = map[string]shape{
	AppSwitchNetwork:    chainShape,
	AppConnectEmail:     emailShape,
	AppConnectDevice:    emptyShape,
	AppConnectOtp:       {payload: payloadRequired, fields: []field{{name: "otp", kind: kindString}}},
	AppGetUser:          {payload: payloadOptional, fields: []field{{name: "chainId", kind: kindInteger, optional: true}}},
	AppSignOut:          emptyShape,
	AppIsConnected:      {payload: payloadOptional, fields: []field{{name: "token", kind: kindString, optional: true}}},
	AppGetChainID:       emptyShape,
	AppRPCRequest:       {payload: payloadRequired, check: checkRPCRequest},
	AppUpdateEmail:      emailShape,
	AppAwaitUpdateEmail: emptyShape,
	AppSyncTheme: {payload: payloadRequired, fields: []field{
		{name: "themeMode", kind: kindString, optional: true, enum: []string{string(ThemeLight), string(ThemeDark)}},
		{name: "themeVariables", kind: kindScalarRecord, optional: true},
	}},
	AppSyncDappData: {payload: payloadRequired, fields: []field{
		{name: "metadata", kind: kindObject, optional: true, fields: []field{
			{name: "name", kind: kindString},
			{name: "description", kind: kindString},
			{name: "url", kind: kindString},
			{name: "icons", kind: kindStringArray},
		}},
		{name: "sdkVersion", kind: kindString},
		{name: "projectId", kind: kindString},
	}},
}

var frameShapes = map[string]shape{
	FrameSwitchNetworkSuccess: chainShape,
	FrameSwitchNetworkError:   errorShape,
	FrameConnectEmailSuccess: {payload: payloadRequired, fields: []field{
		{name: "action", kind: kindString, enum: []string{string(ActionVerifyDevice), string(ActionVerifyOtp)}},
	}},
	FrameConnectEmailError:    errorShape,
	FrameConnectOtpSuccess:    emptyShape,
	FrameConnectOtpError:      errorShape,
	FrameConnectDeviceSuccess: emptyShape,
	FrameConnectDeviceError:   errorShape,
	FrameGetUserSuccess: {payload: payloadRequired, fields: []field{
		{name: "email", kind: kindEmail},
		{name: "address", kind: kindString},
		{name: "chainId", kind: kindInteger},
	}},
	FrameGetUserError:            errorShape,
	FrameSignOutSuccess:          emptyShape,
	FrameSignOutError:            errorShape,
	FrameIsConnectedSuccess:      {payload: payloadRequired, fields: []field{{name: "isConnected", kind: kindBool}}},
	FrameIsConnectedError:        errorShape,
	FrameGetChainIDSuccess:       chainShape,
	FrameGetChainIDError:         errorShape,
	FrameRPCRequestSuccess:       {payload: payloadAny},
	FrameRPCRequestError:         errorShape,
	FrameSessionUpdate:           {payload: payloadRequired, fields: []field{{name: "token", kind: kindString}}},
	FrameUpdateEmailSuccess:      emptyShape,
	FrameUpdateEmailError:        errorShape,
	FrameAwaitUpdateEmailSuccess: emailShape,
	FrameAwaitUpdateEmailError:   errorShape,
	FrameSyncThemeSuccess:        emptyShape,
	FrameSyncThemeError:          errorShape,
	FrameSyncDappDataSuccess:     emptyShape,
	FrameSyncDappDataError:       errorShape,
}

// checkPayload returns the offending field path and reason, or two empty strings.
func (s shape) checkPayload(payload gjson.Result) (string, string) {
	switch s.payload {
	case payloadIgnored, payloadAny:
		return "", ""
	case payloadOptional:
		if !payload.Exists() {
			return "", ""
		}
	case payloadRequired:
		if !payload.Exists() {
			return "payload", "missing required payload"
		}
	}
	if s.check != nil {
		return s.check(payload)
	}
	if !payload.IsObject() {
		return "payload", "expected object"
	}
	return checkFields("payload", payload, s.fields)
}

func checkFields(prefix string, obj gjson.Result, fields []field) (string, string) {
	for _, f := range fields {
		path := prefix + "." + f.name
		v := obj.Get(f.name)
		if !v.Exists() {
			if hasCaseVariant(obj, f.name) {
				return path, "field name differs in case"
			}
			if f.optional {
				continue
			}
			return path, "missing required field"
		}
		if reason := f.checkValue(path, v); reason != "" {
			return path, reason
		}
		if f.kind == kindObject {
			if p, reason := checkFields(path, v, f.fields); reason != "" {
				return p, reason
			}
		}
	}
	return "", ""
}

func (f field) checkValue(path string, v gjson.Result) string {
	want := fmt.Sprintf("expected %v", f.kind)
	switch f.kind {
	case kindString:
		if v.Type != gjson.String {
			return want
		}
	case kindEmail:
		if v.Type != gjson.String {
			return want
		}
		if err := validate.Var(v.Str, "required,email"); err != nil {
			return "invalid email"
		}
	case kindInteger:
		if v.Type != gjson.Number || v.Num != math.Trunc(v.Num) {
			return want
		}
	case kindBool:
		if v.Type != gjson.True && v.Type != gjson.False {
			return want
		}
	case kindArray:
		if !v.IsArray() {
			return want
		}
	case kindStringArray:
		if !v.IsArray() {
			return want
		}
		for _, item := range v.Array() {
			if item.Type != gjson.String {
				return want
			}
		}
	case kindObject:
		if !v.IsObject() {
			return want
		}
	case kindScalarRecord:
		if !v.IsObject() {
			return want
		}
		ok := true
		v.ForEach(func(_, value gjson.Result) bool {
			ok = value.Type == gjson.String || value.Type == gjson.Number
			return ok
		})
		if !ok {
			return want
		}
	}
	if len(f.enum) > 0 && !contains(f.enum, v.Str) {
		return fmt.Sprintf("expected one of %v", f.enum)
	}
	return ""
}

func checkRPCRequest(payload gjson.Result) (string, string) {
	if !payload.IsObject() {
		return "payload", "expected object"
	}
	method := payload.Get("method")
	if method.Type != gjson.String {
		return "payload.method", "expected string"
	}
	hasParams, ok := rpcMethods[method.Str]
	if !ok {
		return "payload.method", fmt.Sprintf("unsupported rpc method %q", method.Str)
	}
	if !hasParams {
		if hasCaseVariant(payload, "params") {
			return "payload.params", "field name differs in case"
		}
		return "", ""
	}
	params := payload.Get("params")
	if !params.Exists() {
		return "payload.params", "missing required field"
	}
	if !params.IsArray() {
		return "payload.params", "expected array"
	}
	return "", ""
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// hasCaseVariant reports a key that encoding/json would decode into name.
func hasCaseVariant(obj gjson.Result, name string) bool {
	found := false
	obj.ForEach(func(key, _ gjson.Result) bool {
		found = key.Str != name && strings.EqualFold(key.Str, name)
		return !found
	})
	return found
}
