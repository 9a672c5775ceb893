package parcel

import "github.com/zoobzio/capitan"

// Signals for object store and publish lifecycle events.
var (
	PutStarted       = capitan.NewSignal("parcel.put.started", "Object write initiated")
	PutCompleted     = capitan.NewSignal("parcel.put.completed", "Object write succeeded")
	PutFailed        = capitan.NewSignal("parcel.put.failed", "Object write failed")
	GetCompleted     = capitan.NewSignal("parcel.get.completed", "Object fetch completed")
	GetFailed        = capitan.NewSignal("parcel.get.failed", "Object fetch failed")
	DeleteCompleted  = capitan.NewSignal("parcel.delete.completed", "Object deletion succeeded")
	DeleteFailed     = capitan.NewSignal("parcel.delete.failed", "Object deletion failed")
	PresignCompleted = capitan.NewSignal("parcel.presign.completed", "Signed URL generated")
	PresignFailed    = capitan.NewSignal("parcel.presign.failed", "Signed URL generation failed")
	PublishStarted   = capitan.NewSignal("parcel.publish.started", "Publish initiated")
	PublishCompleted = capitan.NewSignal("parcel.publish.completed", "Publish succeeded")
	PublishRejected  = capitan.NewSignal("parcel.publish.rejected", "Publish request failed validation")
	PublishFailed    = capitan.NewSignal("parcel.publish.failed", "Publish failed")
)

// Field keys for event extraction.
var (
	FieldKey        = capitan.NewStringKey("key")
	FieldPath       = capitan.NewStringKey("path")
	FieldBucket     = capitan.NewStringKey("bucket")
	FieldPrefix     = capitan.NewStringKey("prefix")
	FieldSize       = capitan.NewInt64Key("size")
	FieldDuration   = capitan.NewDurationKey("duration")
	FieldError      = capitan.NewErrorKey("error")
	FieldFound      = capitan.NewBoolKey("found")
	FieldCompressed = capitan.NewBoolKey("compressed")
)
