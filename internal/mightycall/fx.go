package mightycall

import "go.uber.org/fx"

var Module = fx.Module("mightycall",
	fx.Provide(
		New,
		func(c *Client) API { return c },
	),
)
