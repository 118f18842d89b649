// Package steps drives multi-step completions. A step is one provider stream;
// when a step ends asking for tools that are registered with a function, the
// runner executes them, feeds the results back into the conversation and
// starts the next step. All steps are merged into a single event stream.
package steps
