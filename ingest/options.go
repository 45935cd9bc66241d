package ingest

import "github.com/nats-io/nats.go"

// Option is the type for a function option
type Option func(*Options)

// Options contains the parameters of a NatsSource.
type Options struct {
	SubjectPrefix string
	NatsOptions   nats.Options
}

// SubjectPrefix is a functional option to set the prefix of the subjects.
// Messages are received on <prefix>.message, playlists on
// <prefix>.playlist and the scheduler state is published on
// <prefix>.state.
func SubjectPrefix(prefix string) Option {
	return func(args *Options) {
		args.SubjectPrefix = prefix
	}
}

// NatsOptions is a functional option to set the options of the nats
// connection.
func NatsOptions(opts nats.Options) Option {
	return func(args *Options) {
		args.NatsOptions = opts
	}
}
