package convert

import (
	"fmt"
	"strings"

	"github.com/waterschap/hydroconv/pkg/dflowfm"
	"github.com/waterschap/hydroconv/pkg/geometry"
	"github.com/waterschap/hydroconv/pkg/logging"
	"github.com/waterschap/hydroconv/pkg/store"
	"github.com/waterschap/hydroconv/pkg/threedi"
)

// PumpProxyPrefix is how proxy orifices carry the source pump's ID in
// their code: pumps are first imported as orifices so the vector
// importers lay down their connection nodes, then replaced.
const PumpProxyPrefix = "Pump "

// OrificesToPumps replaces pump-proxy orifices with pumpstation and
// pumpstation_map features. The orifice's start node hosts the pump for
// a positive orientation, the end node for a negative one; the mapping
// line keeps the orifice's geometry, reversed for negative pumps so it
// always runs in pumping direction.
func OrificesToPumps(s store.Store, structures []dflowfm.Structure, log logging.Logger) error {
	pumps := dflowfm.StructuresOfType(structures, dflowfm.StructurePump)
	if len(pumps) == 0 {
		return nil
	}
	if !s.HasLayer(threedi.LayerOrifice) {
		return fmt.Errorf("orifice layer missing, import pumps as orifices first")
	}

	replaced := 0
	for _, pump := range pumps {
		orifices, err := s.FeaturesWhere(threedi.LayerOrifice, "code", PumpProxyPrefix+pump.ID)
		if err != nil {
			return err
		}
		if len(orifices) == 0 {
			log.Warn("no proxy orifice found for pump", logging.String("pump_id", pump.ID))
			continue
		}
		orifice := orifices[0]

		negative := strings.EqualFold(pump.Str("orientation"), "negative")
		if err := replacePump(s, pump, orifice, negative); err != nil {
			return err
		}
		if err := s.Delete(threedi.LayerOrifice, orifice.ID); err != nil {
			return err
		}
		replaced++
	}
	log.Info("replaced proxy orifices with pumps", logging.Count(replaced))
	return nil
}

func replacePump(s store.Store, pump dflowfm.Structure, orifice *store.Feature, negative bool) error {
	line, ok := orifice.Geom.(geometry.LineString)
	if !ok {
		return fmt.Errorf("proxy orifice %d has no line geometry", orifice.ID)
	}

	nodeField := threedi.FieldConnectionNodeStart
	location := line.StartPoint()
	if negative {
		nodeField = threedi.FieldConnectionNodeEnd
		location = line.EndPoint()
	}
	nodeID, ok := orifice.Int64(nodeField)
	if !ok {
		return fmt.Errorf("proxy orifice %d: missing %s", orifice.ID, nodeField)
	}

	station := store.NewFeature(orifice.ID)
	station.Set("code", pump.ID)
	if name, ok := orifice.Str("display_name"); ok {
		station.Set("display_name", name)
	}
	if v, ok := pump.Float("startLevelSuctionSide"); ok {
		station.Set("start_level", v)
	}
	if v, ok := pump.Float("stopLevelSuctionSide"); ok {
		station.Set("lower_stop_level", v)
	}
	// upper_stop_level stays null: the source has no equivalent.
	if v, ok := pump.Float("capacity"); ok {
		// m3/s to l/s
		station.Set("capacity", v*1000)
	}
	switch strings.ToLower(pump.Str("controlSide")) {
	case "suctionside":
		station.Set("type", int64(1))
	case "deliveryside":
		station.Set("type", int64(2))
	}
	if v := orifice.Fields["sewerage"]; v != nil {
		station.Set("sewerage", v)
	}
	if v, ok := orifice.Int64("zoom_category"); ok {
		station.Set("zoom_category", v)
	}
	station.Set(threedi.FieldConnectionNode, nodeID)
	station.Geom = location.Flatten()
	if err := s.Create(threedi.LayerPumpstation, station); err != nil {
		return err
	}

	// The mapping line always runs from the pump's node to the other
	// side.
	mapGeom := line
	startID, _ := orifice.Int64(threedi.FieldConnectionNodeStart)
	endID, _ := orifice.Int64(threedi.FieldConnectionNodeEnd)
	if negative {
		mapGeom = line.Reverse()
		startID, endID = endID, startID
	}
	pumpMap := store.NewFeature(orifice.ID)
	pumpMap.Set("code", pump.ID)
	if name, ok := orifice.Str("display_name"); ok {
		pumpMap.Set("display_name", name)
	}
	pumpMap.Set("pumpstation_id", station.ID)
	pumpMap.Set(threedi.FieldConnectionNodeStart, startID)
	pumpMap.Set(threedi.FieldConnectionNodeEnd, endID)
	pumpMap.Geom = mapGeom
	return s.Create(threedi.LayerPumpstationMap, pumpMap)
}
