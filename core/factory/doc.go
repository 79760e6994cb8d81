// Package factory instantiates pluggable modules, such as metrics sinks,
// from configuration. A module is named by a type string and configured
// with a raw map that the factory decodes into its own settings struct.
//
//	reg := factory.NewRegistry[metrics.MetricsSink]()
//	_ = reg.Register("sqlite", func(conf map[string]any) (metrics.MetricsSink, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return NewSQLiteSink(c.Path)
//	})
//	sink, err := reg.Create(factory.ModuleConfig{Type: "sqlite", Conf: map[string]any{"path": "states.db"}})
package factory
