package messagebus

import "time"

func (c *Client) SetDialTimeout(d time.Duration) {
	c.dialTimeout = d
}
