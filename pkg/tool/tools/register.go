package tools

import "github.com/wilhg/iamlens/pkg/tool"

// RegisterAll adds every tool backed by client to reg.
func RegisterAll(reg *tool.Registry, client IAMLens) error {
	for _, t := range []tool.Tool{SimulateTool{Client: client}, WhoCanTool{Client: client}, GreetTool{}} {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}
