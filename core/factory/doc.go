// Package factory instantiates pluggable modules (planners, bidders, solvers,
// metrics sinks, auction log stores) from configuration. A module is named by
// a type string and carries a map of raw settings that its factory decodes
// into a typed struct.
//
//	reg := factory.NewRegistry[route.Planner]()
//	_ = reg.Register("random", func(conf map[string]any) (route.Planner, error) {
//	    var c struct{ Seed int64 `json:"seed"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return route.NewRandom(c.Seed, nil), nil
//	})
//	p, err := reg.Create(factory.ModuleConfig{Type: "random", Conf: map[string]any{"seed": 1}})
package factory
