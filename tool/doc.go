/*
Package tool turns plain Go functions into tools a model can call.

A Definition pairs a function with a name, a description and names for its
parameters. The parameter schema sent to the model is derived from the function
signature with invopop/jsonschema, and Call decodes the model's JSON arguments
into the function's parameter types, invokes it and encodes the result as JSON.

	func lookupWeather(ctx context.Context, city string, days int) (Forecast, error)

	weather := tool.Must(lookupWeather,
		tool.Description("Returns the forecast for a city"),
		tool.Parameters("city", "days"),
	)

A context.Context parameter receives the context of the call and is not part of
the schema. When the function returns an error as its last result a non-nil
error fails the call; a panic fails it too.

Definitions without a Function (see Declare) are only advertised to the model;
the engine leaves executing them to the provider.
*/
package tool
