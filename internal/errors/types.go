package errors

import "fmt"

const (
	UnknownError QwenErrorType = iota
	ConfigMissingError
	InvalidTypeError
)

const (
	ImageMissingError QwenErrorType = 2000 + iota
	ImageDecodeError
	UnknownAccountError
	AccountNotConfiguredError
	PluginDisabledError
)

const (
	SubmitError QwenErrorType = 3000 + iota
	NoTaskIdError
	TaskFailedError
	PollTimeoutError
	EmptyResultError
	EditError
)

var errMap = map[QwenErrorType]QwenError{
	UnknownError:              unknown,
	ConfigMissingError:        configMissing,
	InvalidTypeError:          invalidType,
	ImageMissingError:         imageMissing,
	ImageDecodeError:          imageDecode,
	UnknownAccountError:       unknownAccount,
	AccountNotConfiguredError: accountNotConfigured,
	PluginDisabledError:       pluginDisabled,
	SubmitError:               submit,
	NoTaskIdError:             noTaskId,
	TaskFailedError:           taskFailed,
	PollTimeoutError:          pollTimeout,
	EmptyResultError:          emptyResult,
	EditError:                 edit,
}

var (
	unknown              = QwenError{Err: fmt.Errorf("unknown error")}
	configMissing        = QwenError{Err: fmt.Errorf("configuration missing")}
	invalidType          = QwenError{Err: fmt.Errorf("invalid type")}
	imageMissing         = QwenError{Err: fmt.Errorf("referenced image is missing")}
	imageDecode          = QwenError{Err: fmt.Errorf("could not decode image")}
	unknownAccount       = QwenError{Err: fmt.Errorf("unknown account")}
	accountNotConfigured = QwenError{Err: fmt.Errorf("account has no api key")}
	pluginDisabled       = QwenError{Err: fmt.Errorf("plugin disabled")}
	submit               = QwenError{Err: fmt.Errorf("task submission failed")}
	noTaskId             = QwenError{Err: fmt.Errorf("no task id in response")}
	taskFailed           = QwenError{Err: fmt.Errorf("task failed")}
	pollTimeout          = QwenError{Err: fmt.Errorf("poll timeout, please query the task status later")}
	emptyResult          = QwenError{Err: fmt.Errorf("image url is empty")}
	edit                 = QwenError{Err: fmt.Errorf("image edit failed")}
)

// Create returns the predefined error for code.
func Create(code QwenErrorType) QwenError {
	e, ok := errMap[code]
	if !ok {
		e = unknown
	}
	e.Code = code
	e.Message = e.Err.Error()
	return e
}

// TaskFailed returns a TaskFailedError carrying the remote error code and message.
func TaskFailed(remoteCode, remoteMessage string) QwenError {
	e := Create(TaskFailedError)
	e.RemoteCode = remoteCode
	e.RemoteMessage = remoteMessage
	e.Message = fmt.Sprintf("task failed: %s - %s", remoteCode, remoteMessage)
	return e
}

// Remotef returns an error of type code that carries a remote code and message.
func Remotef(code QwenErrorType, remoteCode, remoteMessage string) QwenError {
	e := Create(code)
	e.RemoteCode = remoteCode
	e.RemoteMessage = remoteMessage
	e.Message = fmt.Sprintf("%s: %s (%s)", e.Err.Error(), remoteMessage, remoteCode)
	return e
}
