/*
Package collab shares edits of a flow document between sessions.

A Client belongs to one graph. Changes made locally are sent with Invoke;
changes from other sessions are applied to the graph as they arrive and
handed to Subscribe callbacks. Conflicts resolve by arrival order: the
last write wins.

# Transports

ModePush keeps a websocket to the hub's /elsaData endpoint, pings it and
refreshes presence. ModePull polls /get_topics for messages after the
last sequence seen and sends with /post_topic.

	c, err := collab.New("http://hub:8080", g, collab.WithMode(collab.ModePull))
	err = c.Connect(ctx)
	defer c.Close()

	err = c.Invoke(ctx, collab.Invocation{
		Method: collab.MethodNewShape,
		Page:   pageID,
		Shape:  s.ID,
		Value:  s,
	}, nil)

When the hub reports the session invalid (code 3000), or the transport
fails, the client closes the connection and reconnects after a random
wait, a bounded number of times. State changes are published as
collab.state events.

# Hub

Hub is the matching server. It relays messages between the sessions of a
collaboration session and keeps a bounded backlog for pollers:

	http.ListenAndServe(":8080", collab.NewHub())
*/
package collab
