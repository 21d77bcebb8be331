package events

import "fmt"

// Type identifies the kind of an event. The set of types is closed: values
// outside the constants below are rejected by ParseType and FromRecord.
type Type string

const (
	// System events.
	TypeSystem         Type = "SYSTEM"
	TypeSystemStartup  Type = "SYSTEM_STARTUP"
	TypeSystemShutdown Type = "SYSTEM_SHUTDOWN"
	TypeSystemError    Type = "SYSTEM_ERROR"

	// User interaction events.
	TypeUserInput        Type = "USER_INPUT"
	TypeUserVoiceCommand Type = "USER_VOICE_COMMAND"
	TypeUserTextCommand  Type = "USER_TEXT_COMMAND"

	// Vision events.
	TypeVision          Type = "VISION"
	TypeScreenCaptured  Type = "SCREEN_CAPTURED"
	TypeOCRResult       Type = "OCR_RESULT"
	TypeElementDetected Type = "ELEMENT_DETECTED"

	// Automation events.
	TypeAutomation          Type = "AUTOMATION"
	TypeAutomationStarted   Type = "AUTOMATION_STARTED"
	TypeAutomationCompleted Type = "AUTOMATION_COMPLETED"
	TypeAutomationError     Type = "AUTOMATION_ERROR"

	// Voice events.
	TypeVoice           Type = "VOICE"
	TypeSpeechStarted   Type = "SPEECH_STARTED"
	TypeSpeechCompleted Type = "SPEECH_COMPLETED"
	TypeSpeechError     Type = "SPEECH_ERROR"

	// Hearing events.
	TypeHearing            Type = "HEARING"
	TypeWakeWordDetected   Type = "WAKE_WORD_DETECTED"
	TypeListeningStarted   Type = "LISTENING_STARTED"
	TypeListeningCompleted Type = "LISTENING_COMPLETED"

	// State and lifecycle events.
	TypeStateChange     Type = "STATE_CHANGE"
	TypeComponentStatus Type = "COMPONENT_STATUS"

	// Smart home events.
	TypeDeviceCommand      Type = "DEVICE_COMMAND"
	TypeDeviceQuery        Type = "DEVICE_QUERY"
	TypeDeviceState        Type = "DEVICE_STATE"
	TypeDeviceStateChanged Type = "DEVICE_STATE_CHANGED"
	TypeRoutineExecute     Type = "ROUTINE_EXECUTE"

	// Presence events.
	TypeAnimationChange Type = "ANIMATION_CHANGE"

	// Custom events.
	TypeCustom Type = "CUSTOM"
)

var knownTypes = map[Type]struct{}{
	TypeSystem: {}, TypeSystemStartup: {}, TypeSystemShutdown: {}, TypeSystemError: {},
	TypeUserInput: {}, TypeUserVoiceCommand: {}, TypeUserTextCommand: {},
	TypeVision: {}, TypeScreenCaptured: {}, TypeOCRResult: {}, TypeElementDetected: {},
	TypeAutomation: {}, TypeAutomationStarted: {}, TypeAutomationCompleted: {}, TypeAutomationError: {},
	TypeVoice: {}, TypeSpeechStarted: {}, TypeSpeechCompleted: {}, TypeSpeechError: {},
	TypeHearing: {}, TypeWakeWordDetected: {}, TypeListeningStarted: {}, TypeListeningCompleted: {},
	TypeStateChange: {}, TypeComponentStatus: {},
	TypeDeviceCommand: {}, TypeDeviceQuery: {}, TypeDeviceState: {}, TypeDeviceStateChanged: {}, TypeRoutineExecute: {},
	TypeAnimationChange: {},
	TypeCustom:          {},
}

// IsValid reports whether t belongs to the closed type set.
func (t Type) IsValid() bool {
	_, ok := knownTypes[t]
	return ok
}

func (t Type) String() string { return string(t) }

// ParseType converts a serialized type name back into a Type.
func ParseType(name string) (Type, error) {
	t := Type(name)
	if !t.IsValid() {
		return "", fmt.Errorf("unknown event type %q", name)
	}
	return t, nil
}

// Types returns every member of the closed type set. The order is not
// specified.
func Types() []Type {
	out := make([]Type, 0, len(knownTypes))
	for t := range knownTypes {
		out = append(out, t)
	}
	return out
}
