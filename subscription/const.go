package subscription

// Status is the custom type to define the current status of a subscription
type Status string

// Defining different Statuses for a Subscription
// Created -> Active <-> GracePeriod -> Expired
// Active/GracePeriod -> Error
// Expired and Error are terminal
const (
	StatusCreated     Status = "Created"
	StatusActive      Status = "Active"
	StatusGracePeriod Status = "GracePeriod"
	StatusExpired     Status = "Expired"
	StatusError       Status = "Error"
)

// Provider identifies the billing platform owning a subscription
type Provider string

const (
	ProviderGoogle Provider = "Google"
)

// PaymentStatus is the status of a PaymentTransaction
type PaymentStatus string

const (
	PaymentNotSent  PaymentStatus = "NotSent"
	PaymentPending  PaymentStatus = "Pending"
	PaymentApproved PaymentStatus = "Approved"
	PaymentDeclined PaymentStatus = "Declined"
	PaymentCanceled PaymentStatus = "Canceled"
	PaymentError    PaymentStatus = "Error"
)

// Category of a PaymentTransaction within a subscription lineage
type Category string

const (
	CategoryInitial Category = "Initial"
	CategoryRenewal Category = "Renewal"
	CategoryRetry   Category = "Retry"
)

// PaymentType tells how the amount of a PaymentTransaction was derived
type PaymentType string

const (
	TypePayment             PaymentType = "Payment"
	TypeFreeTrial           PaymentType = "FreeTrial"
	TypeIntroductoryPayment PaymentType = "IntroductoryPayment"
)

// MethodGoogle is the PaymentMethod.Method for Google Play billing
const MethodGoogle string = "GOOGL"

// ChangeReason is recorded on every mutation of a Subscription for audit
type ChangeReason string

const (
	ReasonGoogleNew                 ChangeReason = "GoogleNew"
	ReasonGoogleExpired             ChangeReason = "GoogleExpired"
	ReasonGoogleCanceled            ChangeReason = "GoogleCanceled"
	ReasonGoogleCanceledImmediately ChangeReason = "GoogleCanceledImmediately"
	ReasonGoogleRenewed             ChangeReason = "GoogleRenewed"
	ReasonGoogleRenewInPast         ChangeReason = "GoogleRenewInPast"
	ReasonGoogleGracePeriod         ChangeReason = "GoogleGracePeriod"
	ReasonGoogleRecovered           ChangeReason = "GoogleRecovered"
	ReasonGoogleRestarted           ChangeReason = "GoogleRestarted"
	ReasonGoogleRevoked             ChangeReason = "GoogleRevoked"
	ReasonGooglePaused              ChangeReason = "GooglePaused"
	ReasonGooglePauseScheduled      ChangeReason = "GooglePauseScheduled"
	ReasonGoogleResumed             ChangeReason = "GoogleResumed"
	ReasonGoogleOnHold              ChangeReason = "GoogleOnHold"
	ReasonGoogleUpgradeExpire       ChangeReason = "GoogleUpgradeExpire"
	ReasonGoogleUpgradeNew          ChangeReason = "GoogleUpgradeNew"
	ReasonGoogleDowngradeExpire     ChangeReason = "GoogleDowngradeExpire"
	ReasonGoogleDowngradeNew        ChangeReason = "GoogleDowngradeNew"
)
