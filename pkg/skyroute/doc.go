// Package skyroute is a client-side MQTT publish/subscribe facade.
//
// A Router composes the connection lifecycle, the subscription registry and
// the dispatcher. Host programs create one Router at start-up and pass it to
// the code that needs it:
//
//	r, err := skyroute.New(skyroute.Options{Transport: t})
//	if err != nil {
//	    return err
//	}
//	defer r.Close(ctx)
//
//	r.Register("thermostat",
//	    skyroute.On("home/+/temperature", func(ctx context.Context, m skyroute.Message[Reading]) error {
//	        room := m.Captures[0]
//	        ...
//	    }, skyroute.WithMode(skyroute.Async)),
//	)
//	r.ApplyConfig(cfg)
//	r.Run(ctx) // main loop; Main-mode handlers run here
//
// Publish, Subscribe and Register never wait for the broker. While the
// connection is down their commands are buffered and replayed in order once
// it comes up.
package skyroute
