package station

// AllocateStation recomputes allocatedPower for every session in
// sessions, given the charger table and a station-wide ceiling. It is a
// pure function: the input slices are never mutated, and calling it
// twice with the same arguments yields the same result (idempotent).
//
// The algorithm is two-level water-filling, run outer round by outer
// round until a fixed point:
//
//  1. remaining = stationCeiling - sum(allocations), saturating at 0.
//  2. Active chargers are those below their maxPower with at least one
//     session below its vehicleMaxPower.
//  3. share = remaining / (sum over active chargers of their under-max
//     session count). Each active charger is awarded up to
//     share*underMaxCount, capped at its own remaining headroom, and
//     that award is distributed across its under-max sessions by
//     allocateConnector.
//
// Every round either strictly grows the total allocation or shrinks the
// active set, so the loop always terminates.
func AllocateStation(sessions []Session, chargers []ChargerConfig, stationCeiling uint32) []Session {
	chargerByID := make(map[string]ChargerConfig, len(chargers))
	for _, c := range chargers {
		chargerByID[c.ID] = c
	}

	// Group sessions by charger, starting every allocation at 0.
	byCharger := make(map[string][]Session)
	for _, s := range sessions {
		s.AllocatedPower = 0
		byCharger[s.ConnectorID.ChargerID] = append(byCharger[s.ConnectorID.ChargerID], s)
	}

	for {
		total := uint32(0)
		for _, group := range byCharger {
			for _, s := range group {
				total += s.AllocatedPower
			}
		}
		remaining := saturatingSub(stationCeiling, total)
		if remaining == 0 {
			break
		}

		type activeCharger struct {
			id           string
			underMax     int
			remainingCap uint32
		}
		var active []activeCharger
		underMaxTotal := 0
		for id, group := range byCharger {
			charger, ok := chargerByID[id]
			if !ok {
				continue
			}
			allocated := uint32(0)
			underMax := 0
			for _, s := range group {
				allocated += s.AllocatedPower
				if s.AllocatedPower < s.VehicleMaxPower {
					underMax++
				}
			}
			if allocated >= charger.MaxPower || underMax == 0 {
				continue
			}
			active = append(active, activeCharger{id: id, underMax: underMax, remainingCap: charger.MaxPower - allocated})
			underMaxTotal += underMax
		}
		if len(active) == 0 || underMaxTotal == 0 {
			break
		}

		share := remaining / uint32(underMaxTotal)
		if share == 0 {
			break
		}

		for _, ac := range active {
			award := share * uint32(ac.underMax)
			if award > ac.remainingCap {
				award = ac.remainingCap
			}
			if award == 0 {
				continue
			}
			group := byCharger[ac.id]
			charger := chargerByID[ac.id]
			allocated := uint32(0)
			for _, s := range group {
				allocated += s.AllocatedPower
			}
			byCharger[ac.id] = allocateConnector(group, allocated+award, charger.MaxPower)
		}
	}

	out := make([]Session, 0, len(sessions))
	for _, group := range byCharger {
		out = append(out, group...)
	}
	return out
}

// allocateConnector distributes chargerCeiling (clamped at maxPower)
// across sessions sharing one charger by equal-rate water-filling: each
// round, every session still below its vehicleMaxPower receives an equal
// additional share of the remaining headroom, clamped at its own cap.
// Every session's allocation is reset to 0 before the fill begins,
// matching AllocateStation's per-round "start this charger over"
// semantics.
func allocateConnector(sessions []Session, chargerCeiling, maxPower uint32) []Session {
	if chargerCeiling > maxPower {
		chargerCeiling = maxPower
	}

	out := make([]Session, len(sessions))
	for i, s := range sessions {
		s.AllocatedPower = 0
		out[i] = s
	}

	for {
		total := uint32(0)
		for _, s := range out {
			total += s.AllocatedPower
		}
		remaining := saturatingSub(chargerCeiling, total)
		underMax := 0
		for _, s := range out {
			if s.AllocatedPower < s.VehicleMaxPower {
				underMax++
			}
		}
		if remaining == 0 || underMax == 0 {
			break
		}
		fair := remaining / uint32(underMax)
		if fair == 0 {
			break
		}
		for i, s := range out {
			if s.AllocatedPower < s.VehicleMaxPower {
				next := s.AllocatedPower + fair
				if next > s.VehicleMaxPower {
					next = s.VehicleMaxPower
				}
				out[i].AllocatedPower = next
			}
		}
	}
	return out
}

// AllocateForNewSession inserts newSession into sessions at allocation 0,
// reruns AllocateStation over the whole set, and returns newSession with
// its post-allocation value clamped to hardcap. The other sessions'
// recomputed allocations are discarded: they are not yet visible to their
// owners and must wait for their own next telemetry event, per the
// hardcap contract that protects not-yet-notified peers.
func AllocateForNewSession(sessions []Session, chargers []ChargerConfig, gridCapacity, hardcap uint32, newSession Session) Session {
	newSession.AllocatedPower = 0
	all := make([]Session, 0, len(sessions)+1)
	all = append(all, sessions...)
	all = append(all, newSession)

	reallocated := AllocateStation(all, chargers, gridCapacity)

	for _, s := range reallocated {
		if s.ID == newSession.ID {
			if s.AllocatedPower > hardcap {
				s.AllocatedPower = hardcap
			}
			return s
		}
	}
	panic("allocator: could not find the session it was just asked to allocate")
}
