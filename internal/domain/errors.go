package domain

import "errors"

var (
	// ErrNoAvailableData means the availability service knows of no data at
	// all for the requested range. It aborts a run.
	ErrNoAvailableData = errors.New("no available data")

	// ErrNoData means a stream request matched no samples.
	ErrNoData = errors.New("no data")

	// ErrMultipleEpochs means a strict stream request spans more than one
	// metadata epoch for the channel.
	ErrMultipleEpochs = errors.New("multiple epochs")
)
