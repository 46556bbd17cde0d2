package models

import "time"

// Operation is the HTTP-verb-like kind of a queued mutation.
type Operation string

const (
	OperationGet    Operation = "GET"
	OperationPut    Operation = "PUT"
	OperationPost   Operation = "POST"
	OperationDelete Operation = "DELETE"
	OperationQuery  Operation = "QUERY"
)

func (o Operation) Valid() bool {
	switch o {
	case OperationGet, OperationPut, OperationPost, OperationDelete, OperationQuery:
		return true
	}
	return false
}

// Mutation is one entry of a collection's pending-mutation queue.
//
// EntityID is set for GET, PUT, POST and DELETE; Query (an encoded
// query.Query) is set for QUERY. Payload is the document snapshot taken
// when a PUT or POST was enqueued.
type Mutation struct {
	Seq        int64
	Collection string
	Operation  Operation
	EntityID   string
	Query      string
	Payload    Entity
	CreatedAt  time.Time
}

// Target is what Enqueue records besides the operation.
type Target struct {
	EntityID string
	Query    string
	Payload  Entity
}
