package fitness

// Request and response bodies of the fitness REST API.

type aggregateBy struct {
	DataTypeName string `json:"dataTypeName"`
}

type bucketByTime struct {
	DurationMillis int64 `json:"durationMillis"`
}

type aggregateRequest struct {
	AggregateBy     []aggregateBy `json:"aggregateBy"`
	BucketByTime    bucketByTime  `json:"bucketByTime"`
	StartTimeMillis int64         `json:"startTimeMillis"`
	EndTimeMillis   int64         `json:"endTimeMillis"`
}

type wireValue struct {
	FPVal  *float64 `json:"fpVal,omitempty"`
	IntVal *int64   `json:"intVal,omitempty"`
}

type wirePoint struct {
	StartTimeNanos int64       `json:"startTimeNanos,string"`
	EndTimeNanos   int64       `json:"endTimeNanos,string"`
	DataTypeName   string      `json:"dataTypeName,omitempty"`
	Value          []wireValue `json:"value"`
}

type wireDataset struct {
	DataSourceID string      `json:"dataSourceId,omitempty"`
	Point        []wirePoint `json:"point"`
}

type wireBucket struct {
	StartTimeMillis int64         `json:"startTimeMillis,string"`
	EndTimeMillis   int64         `json:"endTimeMillis,string"`
	Dataset         []wireDataset `json:"dataset"`
}

type aggregateResponse struct {
	Bucket []wireBucket `json:"bucket"`
}

type wireSession struct {
	ID              string `json:"id"`
	Name            string `json:"name,omitempty"`
	StartTimeMillis int64  `json:"startTimeMillis,string"`
	EndTimeMillis   int64  `json:"endTimeMillis,string"`
	ActivityType    int    `json:"activityType"`
}

type sessionsResponse struct {
	Session []wireSession `json:"session"`
}
