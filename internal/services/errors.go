// Package services defines the business logic for conversations, assistant
// replies, the question catalogue and user sessions. This file centralizes
// the service-level error values so callers can match them with errors.Is.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

// Authentication errors.
var (
	// ErrUnauthorized means the request carries no valid session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidCredentials is returned by SignIn for an unknown email or a
	// wrong password. The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrEmailTaken is returned when signing up with an email that already
	// belongs to another user.
	ErrEmailTaken = errors.New("email already in use")

	// ErrInvalidInput covers malformed sign-up or provider payloads.
	ErrInvalidInput = errors.New("invalid input")
)

// Conversation and chat errors.
var (
	// ErrConversationNotFound indicates that the conversation does not exist
	// or the current user does not participate in it.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrEmptyMessage is returned when a chat message is blank.
	ErrEmptyMessage = errors.New("message is required")

	// ErrTooLong is returned when a chat message exceeds the configured
	// maximum length.
	ErrTooLong = errors.New("message too long")

	// ErrInvalidRole is returned for a message role other than user or
	// assistant.
	ErrInvalidRole = errors.New("role must be user or assistant")

	// ErrTopicRequired is returned when listing questions without a topic.
	ErrTopicRequired = errors.New("topic parameter is required")
)

// Upstream generator errors.
var (
	// ErrUpstream wraps a failure of the response generator.
	ErrUpstream = errors.New("response generator failed")

	// ErrUpstreamTimeout means the generator did not answer in time. The
	// request may be retried.
	ErrUpstreamTimeout = errors.New("response generator timed out")
)
