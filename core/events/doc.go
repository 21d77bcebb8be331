// Package events defines the event envelope and the closed event vocabulary
// shared by every collaborator of the assistant core.
//
// Event types are grouped by producer-facing namespaces:
//
//   - SYSTEM* — core lifecycle and error reporting.
//   - USER_* — direct user input (voice or text).
//   - VISION / SCREEN_CAPTURED / OCR_RESULT / ELEMENT_DETECTED — vision
//     collaborators.
//   - AUTOMATION* — desktop automation collaborators.
//   - VOICE / SPEECH_* — speech synthesis collaborators.
//   - HEARING / WAKE_WORD_DETECTED / LISTENING_* — audio capture
//     collaborators.
//   - STATE_CHANGE / COMPONENT_STATUS — emitted by the state machine on
//     every committed transition and by the orchestrator on component
//     lifecycle changes.
//   - DEVICE_* / ROUTINE_EXECUTE — smart-home collaborators.
//   - ANIMATION_CHANGE — presence/GUI collaborators.
//   - CUSTOM — escape hatch for ad-hoc integrations.
//
// Semantics used across the package:
//
//   - An Event is immutable after construction except through MergeData,
//     which adds or overwrites payload keys and never removes existing ones.
//   - Priorities form a total order (LOW < NORMAL < HIGH < CRITICAL) that
//     governs both dispatch precedence and handler eligibility.
//   - Record is the only externally observable representation of an event;
//     it round-trips losslessly for primitive payload values.
package events
