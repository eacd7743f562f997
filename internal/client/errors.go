package client

import "errors"

var (
	// ErrRoomNotFound means the room id matched nothing on the server. A
	// caller must surface it distinctly and must not activate a channel.
	ErrRoomNotFound = errors.New("room not found")

	// ErrNotConnected rejects a send while the channel is not connected.
	// The send has no side effects; the caller keeps its input.
	ErrNotConnected = errors.New("not connected")

	// ErrEmptyMessage rejects a send whose content trims to nothing.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrUploadInProgress rejects an upload while another one is running.
	ErrUploadInProgress = errors.New("upload already in progress")

	// ErrFileTooLarge is the client-side form of a 413 response.
	ErrFileTooLarge = errors.New("file too large")

	// ErrUnsupportedFile is the client-side form of a 415 response.
	ErrUnsupportedFile = errors.New("unsupported file type")
)
