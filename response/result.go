package response

// Result is returned to the delivery layer. FAIL means the notification may be redelivered
type Result int

const (
	FAIL    Result = 0
	SUCCESS Result = 1
)

func (r Result) String() string {
	if r == SUCCESS {
		return "SUCCESS"
	}
	return "FAIL"
}
