package matter

// EndpointAs returns ep as endpoint kind T if T's device type appears
// anywhere in the endpoint's device-type list.
func EndpointAs[T ConcreteEndpoint[T]](ep Endpoint) (T, bool) {
	var zero T
	if ep.sub == nil {
		return zero, false
	}
	ids, count := ep.sub.DeviceTypeIDs(ep.handle)
	n := int(count)
	if n > len(ids) {
		n = len(ids)
	}
	want := zero.deviceTypeID().raw
	for _, id := range ids[:n] {
		if id == want {
			return zero.fromEndpoint(ep), true
		}
	}
	return zero, false
}

// ClusterAs returns c as cluster kind C if its protocol id is C's id.
func ClusterAs[C ConcreteCluster[C]](c Cluster) (C, bool) {
	var zero C
	if c.ID() != zero.clusterTypeID().raw {
		return zero, false
	}
	return zero.fromCluster(c), true
}

// EventAttribute returns the typed view of the attribute an event concerns
// when it is attribute id of cluster kind C.
func EventAttribute[C ConcreteCluster[C], A ConcreteAttribute[A]](ev AttributeEvent, id AttributeID[C, A]) (A, bool) {
	var zero A
	c, ok := ClusterAs[C](ev.Cluster)
	if !ok || ev.AttributeID != id.raw {
		return zero, false
	}
	return ReadAttribute(c, id), true
}
